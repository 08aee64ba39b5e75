package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	ServerPort  string

	// Process-wide JWT verification for enterprise bearer tokens.
	JWTSecret    string
	JWTAlgorithm string

	// Replay windows, in seconds.
	HMACExpirySeconds int
	OpenSkewSeconds   int

	// Identity advertised in response headers.
	AppID      string
	APIVersion string

	// Hint included in quota-exceeded responses.
	QuotaUpgradeURL string

	// Upstream commerce backend credentials.
	UpstreamURL       string
	UpstreamAppID     string
	UpstreamAppKey    string
	UpstreamAppSecret string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		JWTSecret:    getEnv("JWT_SECRET", "secret"),
		JWTAlgorithm: getEnv("JWT_ALGORITHM", "HS256"),

		HMACExpirySeconds: getEnvInt("HMAC_EXPIRY_SECONDS", 300),
		OpenSkewSeconds:   getEnvInt("OPEN_SKEW_SECONDS", 300),

		AppID:      getEnv("API_APP_ID", "commerce-gateway"),
		APIVersion: getEnv("API_VERSION", "v1"),

		QuotaUpgradeURL: getEnv("QUOTA_UPGRADE_URL", "https://akirafn.com.br/contact"),

		UpstreamURL:       getEnv("UPSTREAM_URL", "http://localhost:9000"),
		UpstreamAppID:     getEnv("UPSTREAM_APP_ID", ""),
		UpstreamAppKey:    getEnv("UPSTREAM_APP_KEY", ""),
		UpstreamAppSecret: getEnv("UPSTREAM_APP_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}
