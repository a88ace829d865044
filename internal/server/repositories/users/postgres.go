package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const userColumns = `id, username, password_hash, name, scopes, creator, email, created_at`

// SQLRepository implements Repository over dbx.DBTX. Queries are written for
// Postgres and rebound for SQLite.
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

func (r *SQLRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	query :=
		`INSERT INTO users (` + userColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (username) DO NOTHING
		 `

	scopes, err := encodeScopes(user.Scopes)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.ID, user.UserName, user.PasswordHash, user.Name, scopes, user.Creator, user.Email, user.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *SQLRepository) GetUserByLogin(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE username = $1
		 `

	user, err := scanUser(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *SQLRepository) Replace(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users
		 SET password_hash = $1, name = $2, scopes = $3, creator = $4, email = $5
		 WHERE username = $6
		 `

	scopes, err := encodeScopes(user.Scopes)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		user.PasswordHash, user.Name, scopes, user.Creator, user.Email, user.UserName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, username string) (bool, error) {
	query :=
		`DELETE FROM users
		 WHERE username = $1
		 `

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), username)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 ORDER BY username
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		scopes    string
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.UserName, &user.PasswordHash, &user.Name,
		&scopes, &user.Creator, &user.Email, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scopes), &user.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	user.CreatedAt = time.UnixMilli(createdAt)
	return &user, nil
}

func encodeScopes(scopes []string) (string, error) {
	if scopes == nil {
		scopes = []string{}
	}
	b, err := json.Marshal(scopes)
	if err != nil {
		return "", fmt.Errorf("encode scopes: %w", err)
	}
	return string(b), nil
}
