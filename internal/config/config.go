package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// API contains API server configuration
	API APIConfig
	// Auth contains authentication configuration
	Auth AuthConfig
	// Database contains database configuration
	Database DatabaseConfig
	// Challenge contains the two bot-challenge provider configurations
	Challenge ChallengeConfig
	// Reputation contains IP reputation service configuration
	Reputation ReputationConfig
	// Verification contains preflight/finalize tuning
	Verification VerificationConfig

	// RateLimit configures the transport-level token bucket in front of the
	// domain rate limiter, plus the background sweep schedule.
	RateLimit struct {
		Requests      int           // requests allowed per window
		Window        int           // window in seconds
		SweepInterval time.Duration // expired event/lock cleanup cadence
	}
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// APIConfig contains API server settings
type APIConfig struct {
	Port string
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret key used to sign session tokens
	JWTSecret string
	// JWTExpiration is the session token lifetime in hours
	JWTExpiration int
	// RegistrationOpen determines if new user registration is allowed
	RegistrationOpen bool
}

// ChallengeProviderConfig describes one token-verification endpoint
type ChallengeProviderConfig struct {
	Name      string
	VerifyURL string
	Secret    string
}

// ChallengeConfig holds both independent challenge providers
type ChallengeConfig struct {
	Primary   ChallengeProviderConfig
	Secondary ChallengeProviderConfig
	Timeout   time.Duration
}

// ReputationConfig contains IP reputation service settings
type ReputationConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
	// Per-attempt-kind toggles; lookups are skipped when disabled.
	EnabledRegistration bool
	EnabledLevelUp      bool
	// BlockedCountries holds ISO country codes rejected outright.
	BlockedCountries []string
}

// VerificationConfig contains reuse windows and token/lockout tuning
type VerificationConfig struct {
	// ThreeWayWindow is the lookback for the webgl+canvas+audio hash.
	ThreeWayWindow time.Duration
	// TwoWayWindow is the lookback for each pairwise hash.
	TwoWayWindow time.Duration
	// PreflightTokenTTL bounds the preflight→finalize gap.
	PreflightTokenTTL time.Duration
	// SuccessLock is how long a successful level-up locks the next one.
	SuccessLock time.Duration
	// MaxFailures failed attempts inside FailureLockout of the last attempt
	// lock further attempts.
	MaxFailures    int
	FailureLockout time.Duration
	// IdentitySalt keys the permanent HMAC identity hashes.
	IdentitySalt string
	// DailySalt keys the rotating display IDs.
	DailySalt string
	// DisableReuseCheck bypasses fingerprint reuse rejection for local
	// development against a single browser.
	DisableReuseCheck bool
}

// LoadFromEnv retrieves configuration from environment variables
func (c *Config) LoadFromEnv() error {
	c.API = APIConfig{
		Port: getEnvOrDefault("API_PORT", "8080"),
	}
	c.Database = DatabaseConfig{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:         getEnvOrDefault("DB_NAME", "boardgate"),
		SSLMode:        getEnvOrDefault("DB_SSL_MODE", "disable"),
		MigrationsPath: "migrations",
	}
	c.Auth = AuthConfig{
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTExpiration:    getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		RegistrationOpen: getEnvAsBool("REGISTRATION_OPEN", true),
	}
	c.Challenge = ChallengeConfig{
		Primary: ChallengeProviderConfig{
			Name:      "turnstile",
			VerifyURL: getEnvOrDefault("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
			Secret:    os.Getenv("TURNSTILE_SECRET_KEY"),
		},
		Secondary: ChallengeProviderConfig{
			Name:      "hcaptcha",
			VerifyURL: getEnvOrDefault("HCAPTCHA_VERIFY_URL", "https://hcaptcha.com/siteverify"),
			Secret:    os.Getenv("HCAPTCHA_SECRET_KEY"),
		},
		Timeout: getEnvAsDuration("CHALLENGE_TIMEOUT", 10*time.Second),
	}
	c.Reputation = ReputationConfig{
		APIURL:              os.Getenv("REPUTATION_API_URL"),
		APIKey:              os.Getenv("REPUTATION_API_KEY"),
		Timeout:             getEnvAsDuration("REPUTATION_TIMEOUT", 10*time.Second),
		EnabledRegistration: getEnvAsBool("REPUTATION_ENABLED_REGISTRATION", true),
		EnabledLevelUp:      getEnvAsBool("REPUTATION_ENABLED_LEVEL_UP", true),
		BlockedCountries:    getEnvAsList("REPUTATION_BLOCKED_COUNTRIES"),
	}
	c.Verification = VerificationConfig{
		ThreeWayWindow:    getEnvAsDuration("FINGERPRINT_3HASH_WINDOW", 23*time.Hour),
		TwoWayWindow:      getEnvAsDuration("FINGERPRINT_2HASH_WINDOW", time.Hour),
		PreflightTokenTTL: getEnvAsDuration("PREFLIGHT_TOKEN_TTL", 5*time.Minute),
		SuccessLock:       getEnvAsDuration("LEVEL_UP_SUCCESS_LOCK", 23*time.Hour),
		MaxFailures:       getEnvAsInt("LEVEL_UP_MAX_FAILURES", 3),
		FailureLockout:    getEnvAsDuration("LEVEL_UP_FAILURE_LOCKOUT", 5*time.Minute),
		IdentitySalt:      os.Getenv("PERMANENT_HASH_SALT"),
		DailySalt:         os.Getenv("USER_ID_SALT"),
		DisableReuseCheck: getEnvAsBool("DEV_MODE_DISABLE_REUSE_CHECK", false),
	}

	c.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 1000)
	c.RateLimit.Window = getEnvAsInt("RATE_LIMIT_WINDOW", 60)
	c.RateLimit.SweepInterval = getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", 10*time.Minute)

	// Validate required fields
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Verification.IdentitySalt == "" {
		return fmt.Errorf("PERMANENT_HASH_SALT is required")
	}
	if c.Verification.DailySalt == "" {
		return fmt.Errorf("USER_ID_SALT is required")
	}

	return nil
}

// getEnvAsInt retrieves an environment variable and converts it to an integer
func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvAsBool retrieves an environment variable and converts it to a boolean
func getEnvAsBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration retrieves an environment variable and parses it as a duration
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated environment variable
func getEnvAsList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
