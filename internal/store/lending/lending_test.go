package lending

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	claudia = "2c1d5a9e-0000-4000-8000-000000000001"
	other   = "2c1d5a9e-0000-4000-8000-000000000002"
)

var fixedNow = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := New(sqlx.NewDb(db, "pgx"), nil)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var copyCols = []string{"id", "book_id", "library_id", "user_id", "username", "borrow_date"}

const selectCopy = `FROM "book_copies" AS "c" LEFT JOIN "users" AS "u" .* WHERE .*"c"."id" = \$1`

func TestBorrow_AvailableCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies SET user_id = \$2, borrow_date = \$3 WHERE id = \$1 AND user_id IS NULL`).
		WithArgs(int64(1), claudia, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO loans`).
		WithArgs(int64(1), claudia, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(selectCopy).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(int64(1), int64(7), int64(2), claudia, "claudia", fixedNow))
	mock.ExpectCommit()

	c, err := s.Borrow(t.Context(), 1, claudia)
	require.NoError(t, err)
	require.NotNil(t, c.User)
	assert.Equal(t, "claudia", c.User.Username)
	require.NotNil(t, c.BorrowDate)
	assert.True(t, c.BorrowDate.Equal(fixedNow))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_UnknownCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCopy).WillReturnRows(sqlmock.NewRows(copyCols))
	mock.ExpectRollback()

	_, err := s.Borrow(t.Context(), 99, claudia)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_SameUserIsIdempotent(t *testing.T) {
	s, mock := newMockStore(t)
	since := fixedNow.Add(-48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCopy).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(int64(1), int64(7), int64(2), claudia, "claudia", since))
	mock.ExpectCommit()

	c, err := s.Borrow(t.Context(), 1, claudia)
	require.NoError(t, err)
	require.NotNil(t, c.BorrowDate)
	assert.True(t, c.BorrowDate.Equal(since), "original borrow date is kept")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_HeldByAnotherUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCopy).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(int64(1), int64(7), int64(2), other, "someone", fixedNow))
	mock.ExpectRollback()

	_, err := s.Borrow(t.Context(), 1, claudia)
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrow_DBErrorRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("conn reset")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := s.Borrow(t.Context(), 1, claudia)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_BorrowedCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies SET user_id = NULL, borrow_date = NULL WHERE id = \$1 AND user_id IS NOT NULL`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE loans SET returned_at = \$2 WHERE copy_id = \$1 AND returned_at IS NULL`).
		WithArgs(int64(1), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectCopy).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(int64(1), int64(7), int64(2), nil, nil, nil))
	mock.ExpectCommit()

	c, err := s.Return(t.Context(), 1)
	require.NoError(t, err)
	assert.Nil(t, c.User)
	assert.Nil(t, c.BorrowDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_AvailableCopyIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCopy).
		WillReturnRows(sqlmock.NewRows(copyCols).AddRow(int64(1), int64(7), int64(2), nil, nil, nil))
	mock.ExpectCommit()

	c, err := s.Return(t.Context(), 1)
	require.NoError(t, err)
	assert.Nil(t, c.User)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_UnknownCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE book_copies`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectCopy).WillReturnRows(sqlmock.NewRows(copyCols))
	mock.ExpectRollback()

	_, err := s.Return(t.Context(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowedBy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "book_copies" AS "c" LEFT JOIN "users" AS "u" .* WHERE .*"c"."user_id" = \$1`).
		WithArgs(claudia).
		WillReturnRows(sqlmock.NewRows(copyCols).
			AddRow(int64(1), int64(7), int64(2), claudia, "claudia", fixedNow).
			AddRow(int64(3), int64(8), int64(2), claudia, "claudia", fixedNow))

	copies, err := s.BorrowedBy(t.Context(), claudia)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, "claudia", copies[1].User.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneLoans(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := fixedNow.AddDate(0, 0, -365)

	mock.ExpectExec(`DELETE FROM loans WHERE returned_at IS NOT NULL AND returned_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.PruneLoans(t.Context(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
