package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by IDENTITY_ENV (or .env by default),
// then loads the corresponding .secret sidecar if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("IDENTITY_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; env vars may come from the environment directly.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// TokenSecret returns the HMAC signing secret for access tokens.
// The server refuses to start without it.
func TokenSecret() string {
	return os.Getenv("AUTH_TOKEN_SECRET")
}

// TokenTTL returns the access token validity window.
// Defaults to 24h if unset or unparsable.
func TokenTTL() time.Duration {
	d, err := time.ParseDuration(os.Getenv("TOKEN_TTL"))
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RefreshTokenTTL returns the refresh token validity window.
// Defaults to 720h (30 days).
func RefreshTokenTTL() time.Duration {
	d, err := time.ParseDuration(os.Getenv("REFRESH_TOKEN_TTL"))
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// IdentityMode selects the email-uniqueness strategy: "global" or "scoped".
// The two are mutually exclusive and fixed for the lifetime of a deployment;
// the schema must carry the matching uniqueness constraint.
func IdentityMode() string {
	m := os.Getenv("AUTH_IDENTITY_MODE")
	if m == "" {
		return "global"
	}
	return m
}

// CookieSecure reports whether the auth cookie should carry the Secure flag.
func CookieSecure() bool {
	v, err := strconv.ParseBool(os.Getenv("COOKIE_SECURE"))
	if err != nil {
		return false
	}
	return v
}

// RateLimitRPS returns requests per second limit. Defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting. Defaults to 20.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

func SeedsPath() string {
	p := os.Getenv("SEEDS_PATH")
	if p == "" {
		return "seeds"
	}
	return p
}
