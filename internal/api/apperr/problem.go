package apperr

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`    // e.g. "unique", "not_null", "fk", "invalid", "too_long"
	Message string `json:"message"` // human readable
}

type Problem struct {
	Type        string       `json:"type,omitempty"`   // RFC7807 type URI
	Title       string       `json:"title"`            // short summary
	Status      int          `json:"status"`           // HTTP status code
	Detail      string       `json:"detail,omitempty"` // human details
	Instance    string       `json:"instance,omitempty"`
	RequestID   string       `json:"request_id,omitempty"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
	Retryable   bool         `json:"retryable,omitempty"`
}

func (p Problem) Error() string {
	if p.Detail != "" {
		return p.Title + ": " + p.Detail
	}
	return p.Title
}

func Write(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}
	if p.RequestID == "" && r != nil {
		// RequestID middleware mirrors the id onto the request header
		if rid := r.Header.Get("X-Request-ID"); rid != "" {
			p.RequestID = rid
		}
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteStatus is the short form: status + title + detail.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	Write(w, r, Problem{Status: status, Title: title, Detail: detail})
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	WriteStatus(w, r, http.StatusNotFound, "Not Found", detail)
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	WriteStatus(w, r, http.StatusBadRequest, "Bad Request", detail)
}

func Unauthorized(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, r, http.StatusUnauthorized, "Unauthorized", "authentication credentials were not provided")
}

// Invalid writes a 422 with one field error.
func Invalid(w http.ResponseWriter, r *http.Request, field, msg string) {
	Write(w, r, Problem{
		Status:      http.StatusUnprocessableEntity,
		Title:       "Unprocessable Entity",
		FieldErrors: []FieldError{{Field: field, Code: "invalid", Message: msg}},
	})
}
