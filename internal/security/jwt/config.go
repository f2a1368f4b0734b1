package jwtutil

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Secret    []byte
	ClockSkew time.Duration
	AccessTTL time.Duration
}

// LoadConfig reads AUTH_JWT_SECRET, AUTH_CLOCK_SKEW_SEC and AUTH_ACCESS_TTL.
// The secret length is checked by validate.Env at startup.
func LoadConfig() Config {
	c := Config{
		Secret:    []byte(os.Getenv("AUTH_JWT_SECRET")),
		ClockSkew: time.Minute,
		AccessTTL: 15 * time.Minute,
	}
	if n, err := strconv.Atoi(os.Getenv("AUTH_CLOCK_SKEW_SEC")); err == nil && n >= 0 {
		c.ClockSkew = time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(os.Getenv("AUTH_ACCESS_TTL")); err == nil && d > 0 {
		c.AccessTTL = d
	}
	return c
}
