package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRefreshInvalid = errors.New("auth: invalid refresh token")

// RefreshTokens is an allowlist of opaque refresh tokens.
type RefreshTokens interface {
	Issue(ctx context.Context, userID string, tokenVersion int) (string, error)
	// Consume deletes the token and returns what it was issued for.
	Consume(ctx context.Context, token string) (userID string, tokenVersion int, err error)
	Revoke(ctx context.Context, token string) error
}

// RedisRefreshTokens stores rt:<token> -> "userID|tokenVersion".
type RedisRefreshTokens struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRefreshTokens(rdb *redis.Client, ttl time.Duration) *RedisRefreshTokens {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisRefreshTokens{rdb: rdb, ttl: ttl}
}

func refreshKey(token string) string { return "rt:" + token }

func (s *RedisRefreshTokens) Issue(ctx context.Context, userID string, tokenVersion int) (string, error) {
	token, err := randToken()
	if err != nil {
		return "", err
	}
	val := userID + "|" + strconv.Itoa(tokenVersion)
	if err := s.rdb.Set(ctx, refreshKey(token), val, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

func (s *RedisRefreshTokens) Consume(ctx context.Context, token string) (string, int, error) {
	val, err := s.rdb.GetDel(ctx, refreshKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", 0, ErrRefreshInvalid
		}
		return "", 0, err
	}
	return parseRefreshValue(val)
}

func (s *RedisRefreshTokens) Revoke(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, refreshKey(token)).Err()
}

func parseRefreshValue(val string) (string, int, error) {
	userID, tvRaw, ok := strings.Cut(val, "|")
	if !ok || userID == "" {
		return "", 0, ErrRefreshInvalid
	}
	tv, err := strconv.Atoi(tvRaw)
	if err != nil {
		return "", 0, ErrRefreshInvalid
	}
	return userID, tv, nil
}

// randToken returns 32 random bytes, hex encoded.
func randToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func RefreshTTL(raw string) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return 30 * 24 * time.Hour
}
