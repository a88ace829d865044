package accesstokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB or
// *sql.Tx). Uniqueness relies on the primary key of access_tokens.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.Postgres}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.SQLite}
}

func (r *SQLRepository) CreateIfAbsent(ctx context.Context, token *models.AccessToken) (bool, error) {
	query := `
		INSERT INTO access_tokens (token, username, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), token.Token, token.UserName, token.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *SQLRepository) Find(ctx context.Context, token string) (*models.AccessToken, error) {
	query := `
		SELECT token, username, created_at
		FROM access_tokens
		WHERE token = $1
	`
	var (
		t         models.AccessToken
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), token).Scan(&t.Token, &t.UserName, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.CreatedAt = time.UnixMilli(createdAt)
	return &t, nil
}

func (r *SQLRepository) Delete(ctx context.Context, token string) (bool, error) {
	query := `
		DELETE FROM access_tokens
		WHERE token = $1
	`
	n, err := r.exec(ctx, query, token)
	return n > 0, err
}

func (r *SQLRepository) DeleteAllForUser(ctx context.Context, username string) (int64, error) {
	query := `
		DELETE FROM access_tokens
		WHERE username = $1
	`
	return r.exec(ctx, query, username)
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
