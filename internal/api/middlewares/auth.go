package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	jwtutil "github.com/5w1tchy/library-api/internal/security/jwt"
	"go.uber.org/zap"
)

type TokenParser interface {
	ParseAccess(token string) (*jwtutil.AccessClaims, error)
}

// PrincipalLookup loads the current state of a user by id.
type PrincipalLookup interface {
	Principal(ctx context.Context, userID string) (Principal, error)
}

type Authenticator struct {
	Tokens TokenParser
	Users  PrincipalLookup
}

var (
	errNoBearer = errors.New("no bearer")
	errRevoked  = errors.New("token revoked")
)

// authenticate resolves the bearer token to a principal whose stored token
// version still matches the token's.
func (a Authenticator) authenticate(r *http.Request) (Principal, error) {
	tokenStr, err := bearer(r.Header.Get("Authorization"))
	if err != nil {
		return Principal{}, err
	}
	claims, err := a.Tokens.ParseAccess(tokenStr)
	if err != nil {
		return Principal{}, err
	}
	p, err := a.Users.Principal(r.Context(), claims.Subject)
	if err != nil {
		return Principal{}, err
	}
	if p.TokenVersion != claims.TokenVersion {
		return Principal{}, errRevoked
	}
	return p, nil
}

// RequireAuth rejects requests without a valid, unrevoked bearer token.
func (a Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.authenticate(r)
		if err != nil {
			if !errors.Is(err, errNoBearer) {
				zap.L().Named("auth").Debug("rejected token",
					zap.String("request_id", GetRequestID(r)), zap.Error(err))
			}
			apperr.Unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through as a guest.
func (a Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := a.authenticate(r); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole authenticates and then checks the caller holds one of roles.
func (a Authenticator) RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFrom(r.Context())
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			apperr.WriteStatus(w, r, http.StatusForbidden, "Forbidden", "insufficient role")
		}))
	}
}

func bearer(h string) (string, error) {
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", errNoBearer
	}
	tok := strings.TrimSpace(h[len(prefix):])
	if tok == "" {
		return "", errNoBearer
	}
	return tok, nil
}
