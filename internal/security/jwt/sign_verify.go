package jwtutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Signer issues and verifies HS256 access tokens.
type Signer struct {
	cfg Config
	now func() time.Time
}

func NewSigner(cfg Config) *Signer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	return &Signer{cfg: cfg, now: time.Now}
}

func (s *Signer) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// SignAccess returns (tokenString, jti).
func (s *Signer) SignAccess(userID string, tokenVersion int) (string, string, error) {
	jti := uuid.NewString()
	claims := s.claimsFor(userID, jti, tokenVersion)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.cfg.Secret)
	return signed, jti, err
}

// ParseAccess verifies the HS256 signature and expiry (with leeway).
func (s *Signer) ParseAccess(tokenStr string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithLeeway(s.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
