package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Map constraint names from the migrations to request fields.
var constraintField = map[string]string{
	"users_email_key":                "email",
	"users_username_key":             "username",
	"users_role_check":               "role",
	"libraries_slug_key":             "slug",
	"book_copies_book_id_fkey":       "book_id",
	"book_copies_library_id_fkey":    "library_id",
	"book_copies_user_id_fkey":       "user_id",
	"book_copies_borrow_state_check": "borrow_date",
	"loans_open_copy_key":            "copy_id",
}

// Guess a field from a column name present in PG error detail
func fieldFromDetail(detail string) string {
	for _, k := range []string{"slug", "email", "username", "book_id", "library_id", "user_id", "copy_id", "id"} {
		if strings.Contains(detail, "("+k+")") {
			return k
		}
	}
	return ""
}

func fieldFromConstraint(c string) string {
	if f, ok := constraintField[c]; ok {
		return f
	}
	return ""
}

// FromPG maps a pgconn.PgError to a Problem. Returns (Problem, true) if mapped.
func FromPG(err error) (Problem, bool) {
	var pg *pgconn.PgError
	if !errors.As(err, &pg) {
		return Problem{}, false
	}

	p := Problem{
		Title:  "Database error",
		Status: http.StatusInternalServerError,
	}

	field := fieldFromConstraint(pg.ConstraintName)
	if field == "" && pg.Detail != "" {
		field = fieldFromDetail(pg.Detail)
	}
	fieldErr := func(def, code, msg string) {
		if field == "" {
			field = def
		}
		p.FieldErrors = []FieldError{{Field: field, Code: code, Message: msg}}
	}

	switch pg.Code {
	case "23505": // unique_violation
		p.Status, p.Title = http.StatusConflict, "Conflict"
		fieldErr("resource", "unique", "value already exists")
	case "23503": // foreign_key_violation
		p.Status, p.Title = http.StatusConflict, "Conflict"
		fieldErr("resource", "fk", "referenced resource does not exist or is still in use")
	case "23502": // not_null_violation
		p.Status, p.Title = http.StatusBadRequest, "Bad Request"
		if field == "" {
			field = pg.ColumnName
		}
		fieldErr("field", "not_null", "required field is missing")
	case "23514": // check_violation
		p.Status, p.Title = http.StatusUnprocessableEntity, "Unprocessable Entity"
		fieldErr("field", "check", "constraint failed")
	case "22P02": // invalid_text_representation (bad uuid / int)
		p.Status, p.Title = http.StatusBadRequest, "Bad Request"
		fieldErr("id", "invalid", "invalid format")
	case "22001": // string_data_right_truncation
		p.Status, p.Title = http.StatusBadRequest, "Bad Request"
		fieldErr("field", "too_long", "value is too long")
	case "40001": // serialization_failure
		p.Status, p.Title = http.StatusConflict, "Conflict"
		p.Detail = "transaction conflict, please retry"
		p.Retryable = true
	case "40P01": // deadlock_detected
		p.Status, p.Title = http.StatusConflict, "Conflict"
		p.Detail = "deadlock detected, please retry"
		p.Retryable = true
	}

	return p, true
}

// HandleDBError maps err to a Problem and writes it. Returns true if handled.
// Unmapped errors are logged and surface as a bare 500.
func HandleDBError(w http.ResponseWriter, r *http.Request, err error, fallbackTitle string) bool {
	if err == nil {
		return false
	}
	if p, ok := FromPG(err); ok {
		Write(w, r, p)
		return true
	}
	zap.L().Named("db").Error(fallbackTitle,
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", r.Header.Get("X-Request-ID")),
	)
	Write(w, r, Problem{Status: http.StatusInternalServerError, Title: fallbackTitle})
	return true
}
