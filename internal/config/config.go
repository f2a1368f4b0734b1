package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	Port        string
	TLSCert     string
	TLSKey      string
	DatabaseURL string
	RedisURL    string
	CORSOrigins []string
	MaxBodySize int64

	// Honor X-Forwarded-* headers; only behind a proxy that overwrites them.
	TrustProxy bool

	// Retention of closed loans
	LoanRetentionDays int
	LoanRetentionAt   string
	LoanRetentionTZ   string

	// Object storage for book covers (optional)
	S3Endpoint string
	S3Region   string
	S3Bucket   string

	ShutdownTimeout time.Duration
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// Load reads .env files (if present) and then the process environment.
// Values already present in the environment win over .env entries.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() Config {
	return Config{
		AppEnv:            env("APP_ENV", "development"),
		Port:              env("PORT", "3000"),
		TLSCert:           os.Getenv("TLS_CERT"),
		TLSKey:            os.Getenv("TLS_KEY"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		CORSOrigins:       csv("CORS_ORIGINS", defaultOrigins),
		MaxBodySize:       int64(envInt("MAX_BODY_SIZE", 1<<20)),
		TrustProxy:        envBool("TRUST_PROXY"),
		LoanRetentionDays: envInt("LOAN_RETENTION_DAYS", 365),
		LoanRetentionAt:   env("LOAN_RETENTION_AT", "03:00"),
		LoanRetentionTZ:   env("LOAN_RETENTION_TZ", "UTC"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          env("S3_REGION", "auto"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func (c Config) Addr() string { return ":" + strings.TrimPrefix(c.Port, ":") }

func (c Config) TLSEnabled() bool { return c.TLSCert != "" && c.TLSKey != "" }

func (c Config) StorageEnabled() bool { return c.S3Bucket != "" }

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envBool(k string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	return err == nil && b
}

func envDur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func csv(k string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
