package jwtutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the access token payload. Subject holds the user id; TV
// must match the user's current token version or the token is stale.
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenVersion int `json:"tv"`
}

func (s *Signer) claimsFor(userID, jti string, tokenVersion int) AccessClaims {
	iat := s.now()
	c := AccessClaims{TokenVersion: tokenVersion}
	c.Subject = userID
	c.ID = jti
	c.IssuedAt = jwt.NewNumericDate(iat)
	c.NotBefore = c.IssuedAt
	c.ExpiresAt = jwt.NewNumericDate(iat.Add(s.cfg.AccessTTL))
	return c
}

// Remaining is how long the token stays valid from now.
func (c *AccessClaims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}
