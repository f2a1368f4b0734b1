package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id::text AS id, email, username, first_name, last_name, password_hash,
	role, token_version, created_at, updated_at`

type SQLStore struct {
	DB *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{DB: db} }

var _ UserStore = (*SQLStore)(nil)

func (s *SQLStore) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	var u User
	err := s.DB.GetContext(ctx, &u, `
		INSERT INTO users (email, username, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		nu.Email, nu.Username, nu.FirstName, nu.LastName, nu.PasswordHash)
	if err != nil {
		var pg *pgconn.PgError
		if errors.As(err, &pg) && pg.Code == "23505" {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// FindByLogin matches login against email or username, case-insensitively.
func (s *SQLStore) FindByLogin(ctx context.Context, login string) (User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		ORDER BY (lower(email) = lower($1)) DESC
		LIMIT 1`, login)
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *SQLStore) getOne(ctx context.Context, q string, args ...any) (User, error) {
	var u User
	if err := s.DB.GetContext(ctx, &u, q, args...); err != nil {
		var pg *pgconn.PgError
		if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &pg) && pg.Code == "22P02") {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	return err
}

func (s *SQLStore) ChangePassword(ctx context.Context, id, hash string) (int, error) {
	var tv int
	err := s.DB.GetContext(ctx, &tv, `
		UPDATE users SET password_hash = $2, token_version = token_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING token_version`, id, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return tv, err
}

func (s *SQLStore) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	var tv int
	err := s.DB.GetContext(ctx, &tv, `
		UPDATE users SET token_version = token_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING token_version`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return tv, err
}

func (s *SQLStore) SetRole(ctx context.Context, username, role string) (User, error) {
	if !ValidRole(role) {
		return User{}, fmt.Errorf("auth: unknown role %q", role)
	}
	return s.getOne(ctx, `UPDATE users SET role = $2, updated_at = now()
		WHERE username = $1
		RETURNING `+userColumns, username, role)
}

// Principal implements middlewares.PrincipalLookup.
func (s *SQLStore) Principal(ctx context.Context, id string) (middlewares.Principal, error) {
	var p struct {
		ID           string `db:"id"`
		Username     string `db:"username"`
		Role         string `db:"role"`
		TokenVersion int    `db:"token_version"`
	}
	if err := s.DB.GetContext(ctx, &p,
		`SELECT id::text AS id, username, role, token_version FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return middlewares.Principal{}, ErrUserNotFound
		}
		return middlewares.Principal{}, err
	}
	return middlewares.Principal(p), nil
}
