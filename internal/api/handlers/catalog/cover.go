package catalog

import (
	"errors"
	"net/http"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/storage/s3"
	"github.com/5w1tchy/library-api/internal/validate"
	"go.uber.org/zap"
)

type presignCoverRequest struct {
	ContentType string `json:"content_type"`
}

type presignCoverResponse struct {
	UploadURL string `json:"upload_url"`
	CoverKey  string `json:"cover_key"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *Handler) storageUnavailable(w http.ResponseWriter, r *http.Request) bool {
	if h.Covers != nil {
		return false
	}
	apperr.WriteStatus(w, r, http.StatusServiceUnavailable, "Service Unavailable", "object storage is not configured")
	return true
}

// POST /api/books/{id}/cover
// The client PUTs the image to upload_url; the book points at the new key
// right away.
func (h *Handler) PresignCover(w http.ResponseWriter, r *http.Request) {
	if h.storageUnavailable(w, r) {
		return
	}
	id, err := validate.PositiveID(r.PathValue("id"))
	if err != nil {
		apperr.NotFound(w, r, "book not found")
		return
	}
	var req presignCoverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		apperr.BadRequest(w, r, "invalid JSON body")
		return
	}

	b, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		h.fail(w, r, "book", err)
		return
	}
	key, err := s3.CoverKey(id, req.ContentType)
	if errors.Is(err, s3.ErrUnsupportedType) {
		apperr.Invalid(w, r, "content_type", "must be image/webp, image/jpeg or image/png")
		return
	}
	uploadURL, err := h.Covers.PresignUpload(r.Context(), key, req.ContentType)
	if err != nil {
		h.log.Error("presign upload", zap.Int64("book_id", id), zap.Error(err))
		apperr.WriteStatus(w, r, http.StatusBadGateway, "Bad Gateway", "could not presign upload")
		return
	}
	if err := h.Store.SetCoverKey(r.Context(), id, key); err != nil {
		h.fail(w, r, "book", err)
		return
	}
	if b.CoverKey != nil && *b.CoverKey != "" {
		if err := h.Covers.DeleteObject(r.Context(), *b.CoverKey); err != nil {
			h.log.Warn("delete old cover", zap.String("key", *b.CoverKey), zap.Error(err))
		}
	}

	httpx.OK(w, presignCoverResponse{
		UploadURL: uploadURL,
		CoverKey:  key,
		ExpiresIn: int(h.Covers.Expires().Seconds()),
	})
}

// GET /api/books/{id}/cover redirects to a presigned download URL.
func (h *Handler) CoverRedirect(w http.ResponseWriter, r *http.Request) {
	if h.storageUnavailable(w, r) {
		return
	}
	id, err := validate.PositiveID(r.PathValue("id"))
	if err != nil {
		apperr.NotFound(w, r, "book not found")
		return
	}
	b, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		h.fail(w, r, "book", err)
		return
	}
	u := h.coverURL(r, b)
	if u == nil {
		apperr.NotFound(w, r, "book has no cover")
		return
	}
	http.Redirect(w, r, *u, http.StatusTemporaryRedirect)
}
