package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	JWTSecret       string
	TokenTTLMinutes int // 0 means issued tokens do not expire

	SuperuserEmail    string
	SuperuserPassword string
	SuperuserName     string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	OTelEndpoint string
	ServiceName  string

	CORSAllowedOrigins   []string
	TokenRateLimitPerMin int
	MaxBodyBytes         int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: getEnv("DATABASE_URL", buildDBURL()),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		TokenTTLMinutes: getEnvInt("TOKEN_TTL_MINUTES", 0),

		SuperuserEmail:    getEnv("SUPERUSER_EMAIL", ""),
		SuperuserPassword: getEnv("SUPERUSER_PASSWORD", ""),
		SuperuserName:     getEnv("SUPERUSER_NAME", ""),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 60),

		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "userhub-api"),

		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
		TokenRateLimitPerMin: getEnvInt("TOKEN_RATE_LIMIT_PER_MIN", 20),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
	}
}

// Validate rejects settings the API cannot safely run with.
func (c Config) Validate() error {
	if c.DBURL == "" {
		return errors.New("database url is empty")
	}

	if c.JWTSecret == "" && c.Env != "dev" && c.Env != "test" {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.Env)
	}

	if c.TokenTTLMinutes < 0 {
		return errors.New("TOKEN_TTL_MINUTES must not be negative")
	}

	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Secret returns the signing secret, falling back to a fixed value in dev.
func (c Config) Secret() string {
	if c.JWTSecret == "" && (c.Env == "dev" || c.Env == "test") {
		return "dev-insecure-secret"
	}

	return c.JWTSecret
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "userhub")
	pass := getEnv("DB_PASSWORD", "userhub")
	name := getEnv("DB_NAME", "userhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
