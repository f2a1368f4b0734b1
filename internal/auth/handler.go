package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	jwtutil "github.com/5w1tchy/library-api/internal/security/jwt"
	"github.com/5w1tchy/library-api/internal/security/password"
	"github.com/5w1tchy/library-api/internal/validate"
	"go.uber.org/zap"
)

type Handler struct {
	Store  UserStore
	Tokens RefreshTokens // nil: access tokens only
	Signer *jwtutil.Signer
	Hasher *password.Hasher
	log    *zap.Logger
}

func New(store UserStore, tokens RefreshTokens, signer *jwtutil.Signer, hasher *password.Hasher) *Handler {
	return &Handler{Store: store, Tokens: tokens, Signer: signer, Hasher: hasher, log: zap.L().Named("auth")}
}

func (h *Handler) issue(r *http.Request, userID string, tokenVersion int) (TokenPair, error) {
	access, _, err := h.Signer.SignAccess(userID, tokenVersion)
	if err != nil {
		return TokenPair{}, err
	}
	pair := TokenPair{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.Signer.AccessTTL().Seconds()),
	}
	if h.Tokens != nil {
		if pair.RefreshToken, err = h.Tokens.Issue(r.Context(), userID, tokenVersion); err != nil {
			return TokenPair{}, err
		}
	}
	return pair, nil
}

func (h *Handler) writeTokens(w http.ResponseWriter, r *http.Request, status int, u User, extra map[string]any) {
	pair, err := h.issue(r, u.ID, u.TokenVersion)
	if err != nil {
		h.log.Error("issue tokens", zap.String("user_id", u.ID), zap.Error(err))
		httpx.ErrorCode(w, http.StatusInternalServerError, "token_error", "Failed to issue tokens")
		return
	}
	if len(extra) == 0 {
		httpx.WriteJSON(w, status, pair)
		return
	}
	resp := map[string]any{
		"access_token": pair.AccessToken,
		"token_type":   pair.TokenType,
		"expires_in":   pair.ExpiresIn,
	}
	if pair.RefreshToken != "" {
		resp["refresh_token"] = pair.RefreshToken
	}
	for k, v := range extra {
		resp[k] = v
	}
	httpx.WriteJSON(w, status, resp)
}

// Register creates a member account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email || len(email) > 254 {
		httpx.ErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid email")
		return
	}
	username, err := validate.RequireBounded("username", req.Username, 3, 150)
	if err != nil || strings.ContainsAny(username, " @") {
		httpx.ErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid username")
		return
	}
	pw, warn, err := password.Validate(req.Password, email, username)
	if err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "weak_password", "Password must be at least 8 characters")
		return
	}

	hash, err := h.Hasher.Hash(pw)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		httpx.ErrorCode(w, http.StatusInternalServerError, "hash_error", "Failed to hash password")
		return
	}

	u, err := h.Store.CreateUser(r.Context(), NewUser{
		Email:        email,
		Username:     username,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			httpx.ErrorCode(w, http.StatusConflict, "conflict", "Email or username already taken")
			return
		}
		h.log.Error("create user", zap.Error(err))
		httpx.ErrorCode(w, http.StatusInternalServerError, "create_failed", "Cannot create user")
		return
	}
	h.log.Info("user registered", zap.String("user_id", u.ID))

	var extra map[string]any
	if warn != nil {
		extra = map[string]any{"password_warning": warn}
	}
	h.writeTokens(w, r, http.StatusCreated, u, extra)
}

// Login authenticates by email or username.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}
	login := strings.TrimSpace(req.identifier())
	if login == "" || req.Password == "" {
		httpx.ErrorCode(w, http.StatusBadRequest, "invalid_input", "Login and password are required")
		return
	}

	u, err := h.Store.FindByLogin(r.Context(), login)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.log.Error("find user", zap.Error(err))
		}
		httpx.ErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid login or password")
		return
	}
	ok, needsRehash, err := h.Hasher.Verify(req.Password, u.PasswordHash)
	if err != nil || !ok {
		httpx.ErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "Invalid login or password")
		return
	}
	if needsRehash {
		if phc, err := h.Hasher.Hash(req.Password); err == nil {
			if err := h.Store.UpdatePasswordHash(r.Context(), u.ID, phc); err != nil {
				h.log.Warn("rehash password", zap.String("user_id", u.ID), zap.Error(err))
			}
		}
	}
	h.writeTokens(w, r, http.StatusOK, u, nil)
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Tokens == nil {
		httpx.ErrorCode(w, http.StatusServiceUnavailable, "refresh_disabled", "Refresh tokens are not enabled")
		return
	}
	var req RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.ErrorCode(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}

	userID, tv, err := h.Tokens.Consume(r.Context(), req.RefreshToken)
	if err != nil {
		if !errors.Is(err, ErrRefreshInvalid) {
			h.log.Error("consume refresh token", zap.Error(err))
		}
		httpx.ErrorCode(w, http.StatusUnauthorized, "invalid_refresh", "Invalid refresh token")
		return
	}
	u, err := h.Store.FindByID(r.Context(), userID)
	if err != nil || u.TokenVersion != tv {
		httpx.ErrorCode(w, http.StatusUnauthorized, "token_revoked", "Token has been revoked")
		return
	}
	h.writeTokens(w, r, http.StatusOK, u, nil)
}

// Logout drops the given refresh token. Access tokens expire on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	_ = httpx.DecodeJSON(r, &req)
	if h.Tokens != nil && req.RefreshToken != "" {
		if err := h.Tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
			h.log.Warn("revoke refresh token", zap.Error(err))
		}
	}
	httpx.OKNoData(w)
}

// LogoutAll revokes every token of the caller by bumping its token version.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		httpx.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	if _, err := h.Store.BumpTokenVersion(r.Context(), userID); err != nil {
		h.log.Error("bump token version", zap.String("user_id", userID), zap.Error(err))
		httpx.ErrorCode(w, http.StatusInternalServerError, "update_failed", "Failed to update token version")
		return
	}
	httpx.OKNoData(w)
}

// ChangePassword checks the old password, stores the new one and returns
// fresh tokens. Older tokens stop working.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		httpx.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	var req ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.OldPassword == "" {
		httpx.ErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid input")
		return
	}

	u, err := h.Store.FindByID(r.Context(), userID)
	if err != nil {
		httpx.ErrorCode(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	if ok, _, err := h.Hasher.Verify(req.OldPassword, u.PasswordHash); err != nil || !ok {
		httpx.ErrorCode(w, http.StatusForbidden, "forbidden", "Invalid old password")
		return
	}
	np, _, err := password.Validate(req.NewPassword, u.Email, u.Username)
	if err != nil {
		httpx.ErrorCode(w, http.StatusBadRequest, "weak_password", "Password must be at least 8 characters")
		return
	}
	phc, err := h.Hasher.Hash(np)
	if err != nil {
		httpx.ErrorCode(w, http.StatusInternalServerError, "hash_error", "Failed to hash new password")
		return
	}
	if u.TokenVersion, err = h.Store.ChangePassword(r.Context(), userID, phc); err != nil {
		h.log.Error("change password", zap.String("user_id", userID), zap.Error(err))
		httpx.ErrorCode(w, http.StatusInternalServerError, "update_failed", "Failed to update password")
		return
	}
	h.writeTokens(w, r, http.StatusOK, u, nil)
}
