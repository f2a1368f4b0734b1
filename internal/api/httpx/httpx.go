package httpx

import (
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type CodedError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ErrorJSON(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorEnvelope{Status: "error", Error: message})
}

func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": data})
}

// OKMessage is the envelope used by state-changing actions.
func OKMessage(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "message": message, "data": data})
}

func Created(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": data})
}

func OKNoData(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func ErrorCode(w http.ResponseWriter, status int, code, msg string) {
	var e CodedError
	e.Error.Code = code
	e.Error.Message = msg
	WriteJSON(w, status, e)
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// AbsoluteURL turns a path into an absolute URL for the host the client
// used, honoring X-Forwarded-Proto/Host. middlewares.ProxyHeaders strips
// those headers unless TRUST_PROXY is set.
func AbsoluteURL(r *http.Request, path string, query url.Values) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	host := r.Host
	if h := strings.TrimSpace(r.Header.Get("X-Forwarded-Host")); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	u := url.URL{Scheme: scheme, Host: host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
