package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
)

type App struct {
	config *config.Config
	api    *client.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return newApp(c, os.Stdin, os.Stdout)
}

func newApp(c *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		api:    client.NewClient(c.ServerURL, c.RequestTimeout),
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run prints the server banner and starts the REPL.
func (a *App) Run(ctx context.Context) {
	if v, err := a.api.Version(ctx); err != nil {
		fmt.Fprintf(a.out, "warning: %v\n", err)
	} else {
		fmt.Fprintf(a.out, "Connected to gophauth %s at %s (type 'help' for commands)\n", v, a.config.ServerURL)
	}
	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.api.Session() != nil
}

func (a *App) status() string {
	if s := a.api.Session(); s != nil {
		return fmt.Sprintf("(%s) ", s.UserName)
	}
	return ""
}

func (a *App) Signup(ctx context.Context) error {
	userName, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	name, err := GetSimpleText(a.reader, "Enter display name", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	created, err := a.api.Signup(ctx, userName, password, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s created, you can log in now\n", created)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	s, err := a.api.Login(ctx, userName, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", s.UserName)
	return nil
}

func (a *App) Identify(ctx context.Context) error {
	u, err := a.api.Identify(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user:    %s\nname:    %s\nscopes:  %s\n", u.UserName, u.Name, strings.Join(u.Scopes, ", "))
	if u.Creator != "" {
		fmt.Fprintf(a.out, "creator: %s\n", u.Creator)
	}
	if u.Email != "" {
		fmt.Fprintf(a.out, "email:   %s\n", u.Email)
	}
	return nil
}

func (a *App) Users(ctx context.Context) error {
	list, err := a.api.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range list {
		fmt.Fprintf(a.out, "%-20s %-20s %s\n", u.UserName, u.Name, strings.Join(u.Scopes, ","))
	}
	return nil
}

func (a *App) Passwd(ctx context.Context) error {
	password, err := GetPassword("Enter new password", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := a.api.ChangePassword(ctx, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed, all sessions were closed")
	return nil
}

func (a *App) Purge(ctx context.Context) error {
	n, err := a.api.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Revoked %d token(s)\n", n)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
