package validate

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type envCheck struct {
	key   string
	check func(v string) error
}

// Argon2 floors apply only when the variable is set.
var envChecks = []envCheck{
	{"DATABASE_URL", func(v string) error {
		if strings.TrimSpace(v) == "" {
			return errors.New("must be set")
		}
		return nil
	}},
	{"AUTH_JWT_SECRET", func(v string) error {
		if len(v) < 32 {
			return errors.New("must be at least 32 characters")
		}
		return nil
	}},
	{"AUTH_ACCESS_TTL", optionalDuration},
	{"AUTH_REFRESH_TTL", optionalDuration},
	{"ARGON2_MEMORY", atLeast(64 * 1024)},
	{"ARGON2_ITER", atLeast(2)},
	{"ARGON2_PAR", atLeast(1)},
}

// Env fails fast on configuration the server cannot run with.
func Env() error {
	for _, c := range envChecks {
		if err := c.check(os.Getenv(c.key)); err != nil {
			return fmt.Errorf("%s %w", c.key, err)
		}
	}
	if (os.Getenv("TLS_CERT") == "") != (os.Getenv("TLS_KEY") == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	return nil
}

// HardeningWarnings lists settings that work but deserve a second look.
func HardeningWarnings(appEnv string) []string {
	var out []string
	warn := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	if d := durationOr("AUTH_ACCESS_TTL", 15*time.Minute); d > time.Hour {
		warn("AUTH_ACCESS_TTL=%s is over an hour; prefer short-lived access tokens", d)
	}
	if d := durationOr("AUTH_REFRESH_TTL", 30*24*time.Hour); d < 24*time.Hour {
		warn("AUTH_REFRESH_TTL=%s is under a day; sessions will expire often", d)
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		warn("REDIS_URL not set: no catalog cache, no refresh tokens, per-process rate limits")
	}
	if !strings.EqualFold(appEnv, "production") {
		return out
	}
	if os.Getenv("ARGON2_MEMORY") == "" || os.Getenv("ARGON2_ITER") == "" {
		warn("ARGON2_MEMORY/ARGON2_ITER not set in production; built-in defaults in use")
	}
	if strings.HasPrefix(redisURL, "redis://") {
		warn("REDIS_URL is plaintext redis://; use rediss:// in production")
	}
	if os.Getenv("TLS_CERT") == "" {
		warn("TLS_CERT not set; serving plain HTTP behind whatever terminates TLS")
	}
	return out
}

func optionalDuration(v string) error {
	if v == "" {
		return nil
	}
	if d, err := time.ParseDuration(v); err != nil || d <= 0 {
		return fmt.Errorf("invalid duration %q", v)
	}
	return nil
}

func atLeast(floor uint64) func(string) error {
	return func(v string) error {
		if v == "" {
			return nil
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		if n < floor {
			return fmt.Errorf("must be >= %d", floor)
		}
		return nil
	}
}

func durationOr(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}
