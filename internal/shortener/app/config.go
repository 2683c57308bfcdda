package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer    string // Optional: issuer claim for tokens (default: snip)
	JWTSecret string // Required: HMAC secret for signing tokens (min 32 bytes)

	PublicBaseURL string // Optional: base URL short links are served from (default: http://localhost:8080)
	FrontendURL   string // Optional: frontend origin allowed to receive login results (default: PublicBaseURL)

	DatabaseFile string // Optional: path to SQLite database file (default: ./snip.db)

	GoogleClientID     string // Optional: Google OAuth client ID
	GoogleClientSecret string // Optional: Google OAuth client secret
	GitHubClientID     string // Optional: GitHub OAuth client ID
	GitHubClientSecret string // Optional: GitHub OAuth client secret

	AnonymousLinkTTL time.Duration // Optional: lifetime of anonymous links (default: 24h)
	MaxLinksPerOwner int           // Optional: per-account link cap (default: 50)
	CodeLength       int           // Optional: short-code length (default: 8)
	CodeMaxAttempts  int           // Optional: collision retries before giving up (default: 5)
	MaxURLLength     int           // Optional: destination URL length ceiling (default: 2048)
	SweepInterval    time.Duration // Optional: expiry sweep interval (default: 24h)

	CookieSecure        bool          // Mark session cookies Secure (default: true outside dev)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	env := getEnvOrDefault("ENV", "dev")
	publicBaseURL := strings.TrimRight(
		getEnvOrDefault("SNIP_PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	return Config{
		Issuer:    getEnvOrDefault("SNIP_ISSUER", "snip"),
		JWTSecret: os.Getenv("SNIP_JWT_SECRET"),

		PublicBaseURL: publicBaseURL,
		FrontendURL:   getEnvOrDefault("SNIP_FRONTEND_URL", publicBaseURL),

		DatabaseFile: getEnvOrDefault("SNIP_DATABASE_FILE", "snip.db"),

		GoogleClientID:     os.Getenv("SNIP_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("SNIP_GOOGLE_CLIENT_SECRET"),
		GitHubClientID:     os.Getenv("SNIP_GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("SNIP_GITHUB_CLIENT_SECRET"),

		AnonymousLinkTTL: getEnvDurationOrDefault("SNIP_ANONYMOUS_LINK_TTL", 24*time.Hour),
		MaxLinksPerOwner: getEnvIntOrDefault("SNIP_MAX_LINKS_PER_OWNER", 50),
		CodeLength:       getEnvIntOrDefault("SNIP_CODE_LENGTH", 8),
		CodeMaxAttempts:  getEnvIntOrDefault("SNIP_CODE_MAX_ATTEMPTS", 5),
		MaxURLLength:     getEnvIntOrDefault("SNIP_MAX_URL_LENGTH", 2048),
		SweepInterval:    getEnvDurationOrDefault("SNIP_SWEEP_INTERVAL", 24*time.Hour),

		CookieSecure:        getEnvBoolOrDefault("SNIP_COOKIE_SECURE", env != "dev"),
		Env:                 env,
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate rejects configurations the service cannot safely start with.
func (cfg Config) Validate() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("SNIP_JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("SNIP_JWT_SECRET must be at least 32 bytes, got %d", len(cfg.JWTSecret))
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Parses as a duration string (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
