package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPG(t *testing.T) {
	tests := []struct {
		name       string
		err        *pgconn.PgError
		wantStatus int
		wantField  string
		wantCode   string
		retryable  bool
	}{
		{"unique slug", &pgconn.PgError{Code: "23505", ConstraintName: "libraries_slug_key"}, 409, "slug", "unique", false},
		{"fk from detail", &pgconn.PgError{Code: "23503", Detail: "Key (book_id)=(7) is not present"}, 409, "book_id", "fk", false},
		{"borrow state check", &pgconn.PgError{Code: "23514", ConstraintName: "book_copies_borrow_state_check"}, 422, "borrow_date", "check", false},
		{"not null column", &pgconn.PgError{Code: "23502", ColumnName: "title"}, 400, "title", "not_null", false},
		{"serialization", &pgconn.PgError{Code: "40001"}, 409, "", "", true},
		{"unknown", &pgconn.PgError{Code: "XX000", Message: "internal"}, 500, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := FromPG(fmt.Errorf("wrapped: %w", tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.retryable, p.Retryable)
			if tt.wantField == "" {
				assert.Empty(t, p.FieldErrors)
				return
			}
			require.Len(t, p.FieldErrors, 1)
			assert.Equal(t, tt.wantField, p.FieldErrors[0].Field)
			assert.Equal(t, tt.wantCode, p.FieldErrors[0].Code)
		})
	}

	_, ok := FromPG(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrite_FillsDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/copies/99/borrow", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()

	NotFound(rec, req, "no copy with id 99")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"Not Found","status":404,"detail":"no copy with id 99","instance":"/api/copies/99/borrow","request_id":"rid-1"}`, rec.Body.String())
}

func TestHandleDBError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/libraries", nil)

	rec := httptest.NewRecorder()
	assert.False(t, HandleDBError(rec, req, nil, "Failed"))

	rec = httptest.NewRecorder()
	assert.True(t, HandleDBError(rec, req, &pgconn.PgError{Code: "23505", ConstraintName: "libraries_slug_key"}, "Failed"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	assert.True(t, HandleDBError(rec, req, errors.New("conn reset"), "Failed to create library"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to create library")
}
