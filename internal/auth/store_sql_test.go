package auth

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Now()

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(sqlx.NewDb(db, "sqlmock")), mock
}

var userCols = []string{"id", "email", "username", "first_name", "last_name", "password_hash", "role", "token_version", "created_at", "updated_at"}

func TestSQLStore_CreateUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("a@b.co", "abc", "", "", "hash").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("11111111-1111-1111-1111-111111111111", "a@b.co", "abc", "", "", "hash", "member", 0, now, now))

	u, err := s.CreateUser(context.Background(), NewUser{Email: "a@b.co", Username: "abc", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "member", u.Role)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = s.CreateUser(context.Background(), NewUser{Email: "a@b.co", Username: "abc"})
	assert.ErrorIs(t, err, ErrUserExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_FindByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM users WHERE id").WithArgs("x").WillReturnError(sql.ErrNoRows)
	_, err := s.FindByID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUserNotFound)

	mock.ExpectQuery("FROM users WHERE id").WithArgs("not-a-uuid").WillReturnError(&pgconn.PgError{Code: "22P02"})
	_, err = s.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLStore_BumpTokenVersion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users SET token_version").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(4))
	tv, err := s.BumpTokenVersion(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, tv)

	mock.ExpectQuery("UPDATE users SET token_version").WithArgs("gone").WillReturnError(sql.ErrNoRows)
	_, err = s.BumpTokenVersion(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLStore_SetRole(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.SetRole(context.Background(), "abc", "wizard")
	assert.Error(t, err)

	mock.ExpectQuery("UPDATE users SET role").WithArgs("abc", RoleLibrarian).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "a@b.co", "abc", "", "", "hash", RoleLibrarian, 0, now, now))
	u, err := s.SetRole(context.Background(), "abc", RoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, RoleLibrarian, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Principal(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id::text AS id, username, role, token_version").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "token_version"}).AddRow("u1", "abc", "admin", 2))
	p, err := s.Principal(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Role)
	assert.Equal(t, 2, p.TokenVersion)
}

func TestParseRefreshValue(t *testing.T) {
	id, tv, err := parseRefreshValue("u1|3")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	assert.Equal(t, 3, tv)

	for _, bad := range []string{"", "u1", "|3", "u1|x"} {
		_, _, err := parseRefreshValue(bad)
		assert.ErrorIs(t, err, ErrRefreshInvalid, bad)
	}
}
