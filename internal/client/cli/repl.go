package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests use a stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Identify(ctx context.Context) error
	Users(ctx context.Context) error
	Passwd(ctx context.Context) error
	Purge(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF or "exit". Handler errors
// are printed and the loop continues. Command handlers prompt on the same
// reader, so no line is buffered ahead of them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "gauth %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		err = nil
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: identify, users, passwd, purge, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: signup, login, exit")
			}
		case "signup":
			err = a.Signup(ctx)
		case "login":
			err = a.Login(ctx)
		case "identify", "whoami":
			err = a.Identify(ctx)
		case "users":
			err = a.Users(ctx)
		case "passwd":
			err = a.Passwd(ctx)
		case "purge":
			err = a.Purge(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(w, "error:", err)
		}
	}
}
