package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Where the JWT secret came from
const (
	SecretFromEnv       = "environment"
	SecretFromFile      = "file"
	SecretGenerated     = "generated"
	SecretGeneratedOnly = "generated (not persisted)"
)

// Store kinds selected by DATABASE_URL
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Server Configuration
	HTTPPort    int
	CORSOrigins []string

	// Storage Configuration
	DatabaseURL string
	DataDir     string

	// Authentication Configuration
	AdminUsername   string
	AdminPassword   string
	JWTSecret       string
	JWTSecretSource string
	JWTExpiryHours  int

	// Analysis Configuration
	LLMProvider            string
	LLMAPIKey              string
	LLMModel               string
	LLMBaseURL             string
	AnalysisTimeout        time.Duration
	DeployDelay            time.Duration
	AutoAnalyze            bool
	RefreshIntervalSeconds int
	StaleAnalysisAfter     time.Duration
	TemplatesFile          string

	// Telemetry Configuration
	SentryDSN         string
	SentryEnvironment string

	// Slack Configuration
	SlackBotToken string
	SlackChannel  string

	// Logging Configuration
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsIntOrDefault("HTTP_PORT", 3000)
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))

	// Empty or "memory" keeps everything in process
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.DataDir = getEnvOrDefault("DATA_DIR", "/debugops")

	cfg.AdminUsername = getEnvOrDefault("ADMIN_USERNAME", "admin")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD") // No default - must be set
	cfg.JWTExpiryHours = getEnvAsIntOrDefault("JWT_EXPIRY_HOURS", 24)
	cfg.JWTSecret, cfg.JWTSecretSource = loadOrGenerateJWTSecret(filepath.Join(cfg.DataDir, ".jwt_secret"))

	cfg.LLMProvider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "google"))
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.LLMModel = os.Getenv("LLM_MODEL")
	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	cfg.AnalysisTimeout = getEnvAsDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second)
	cfg.DeployDelay = getEnvAsDurationOrDefault("DEPLOY_DELAY", 0)
	cfg.AutoAnalyze = getEnvAsBoolOrDefault("AUTO_ANALYZE", false)
	cfg.RefreshIntervalSeconds = getEnvAsIntOrDefault("REFRESH_INTERVAL_SECONDS", 5)
	cfg.StaleAnalysisAfter = getEnvAsDurationOrDefault("STALE_ANALYSIS_AFTER", 10*time.Minute)
	cfg.TemplatesFile = os.Getenv("TEMPLATES_FILE")

	cfg.SentryDSN = os.Getenv("SENTRY_DSN")
	cfg.SentryEnvironment = getEnvOrDefault("SENTRY_ENVIRONMENT", "production")

	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")
	cfg.SlackChannel = os.Getenv("SLACK_CHANNEL")

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "console")
	cfg.LogFile = os.Getenv("LOG_FILE")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. A missing admin password is reported by the
// serve command, since migrate and version do not need one.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %d is out of range", c.HTTPPort))
	}
	if c.AnalysisTimeout <= 0 {
		errs = append(errs, errors.New("ANALYSIS_TIMEOUT must be positive"))
	}
	if c.DeployDelay < 0 {
		errs = append(errs, errors.New("DEPLOY_DELAY must not be negative"))
	}
	if c.RefreshIntervalSeconds <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL_SECONDS must be positive"))
	}
	if c.StaleAnalysisAfter <= 0 {
		errs = append(errs, errors.New("STALE_ANALYSIS_AFTER must be positive"))
	}
	switch c.LLMProvider {
	case "google", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not one of google, openai, anthropic", c.LLMProvider))
	}
	return errors.Join(errs...)
}

// StoreKind reports which incident store DATABASE_URL selects
func (c *Config) StoreKind() string {
	switch {
	case c.DatabaseURL == "", strings.EqualFold(c.DatabaseURL, StoreMemory):
		return StoreMemory
	case strings.HasPrefix(c.DatabaseURL, "postgres://"), strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return StorePostgres
	default:
		return StoreSQLite
	}
}

// SlackEnabled reports whether both Slack settings are present
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// loadOrGenerateJWTSecret loads JWT secret from file or generates a new one
func loadOrGenerateJWTSecret(secretPath string) (string, string) {
	// JWT_SECRET env var overrides everything
	if envSecret := os.Getenv("JWT_SECRET"); envSecret != "" {
		return envSecret, SecretFromEnv
	}

	if data, err := os.ReadFile(secretPath); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, SecretFromFile
		}
	}

	secret := generateSecureSecret(32) // 256 bits

	if err := os.MkdirAll(filepath.Dir(secretPath), 0o755); err != nil {
		return secret, SecretGeneratedOnly
	}
	if err := os.WriteFile(secretPath, []byte(secret), 0o600); err != nil {
		return secret, SecretGeneratedOnly
	}
	return secret, SecretGenerated
}

// generateSecureSecret generates a cryptographically secure random string
func generateSecureSecret(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("could not generate secure random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// splitList splits a comma-separated value, dropping empty entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault accepts the forms strconv.ParseBool does
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault accepts Go durations ("90s", "2m") or a bare
// number of seconds
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
