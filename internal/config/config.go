package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backend constants
const (
	CacheBackendMemory      = "memory"
	CacheBackendRedis       = "redis"
	CacheBackendRueidisSide = "rueidis-aside"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Session cookie settings
	SessionSecret     string
	SessionCookieName string

	// Identity provider settings
	IssuerURL          string
	ClientID           string
	ClientSecret       string
	TokenEndpoint      string // Defaults to IssuerURL + "/protocol/token"
	EndSessionEndpoint string // Defaults to IssuerURL + "/protocol/logout"
	LogoutRedirectURL  string

	// Identity provider HTTP client
	IdPTimeout            time.Duration
	IdPInsecureSkipVerify bool
	IdPAuthMode           string // "none", "simple", or "hmac"
	IdPAuthSecret         string
	IdPAuthHeader         string
	IdPMaxRetries         int
	IdPRetryDelay         time.Duration
	IdPMaxRetryDelay      time.Duration

	// Token refresh policy
	RefreshBuffer      time.Duration // refresh this long before expiry
	MinRefreshInterval time.Duration // per-user floor between refresh attempts
	MaxRefreshAttempts int
	MaxTokenAge        time.Duration // never refresh a token expired longer than this
	SessionMaxAge      time.Duration

	// Idle / session monitor policy
	IdleTimeout         time.Duration // inactivity before forced logout
	ActivityTimeout     time.Duration // no reported input for this long marks the user idle
	WarningBeforeLogout time.Duration // warning fires this long before logout
	LoginGracePeriod    time.Duration // expiry checks suppressed after login
	MonitorInterval     time.Duration // session poll cadence
	AutoRefresh         bool          // silent refresh for active users

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Cache
	CacheBackend   string // "memory", "redis", or "rueidis-aside"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheKeyPrefix string
	CacheTTL       time.Duration

	// Rate limiting
	RateLimitEnabled bool
	RateLimitRate    string // ulule/limiter formatted rate, e.g. "30-M"
	RateLimitRedis   bool

	// Metrics
	MetricsEnabled bool
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	issuer := strings.TrimSuffix(getEnv("IDP_ISSUER_URL", ""), "/")

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "sessiond.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnv("ENVIRONMENT", "development") == "production",

		SessionSecret:     getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "sessiond_session"),

		IssuerURL:          issuer,
		ClientID:           getEnv("IDP_CLIENT_ID", ""),
		ClientSecret:       getEnv("IDP_CLIENT_SECRET", ""),
		TokenEndpoint:      getEnv("IDP_TOKEN_ENDPOINT", defaultEndpoint(issuer, "/protocol/token")),
		EndSessionEndpoint: getEnv("IDP_END_SESSION_ENDPOINT", defaultEndpoint(issuer, "/protocol/logout")),
		LogoutRedirectURL:  getEnv("IDP_LOGOUT_REDIRECT_URL", ""),

		IdPTimeout:            getEnvDuration("IDP_TIMEOUT", 10*time.Second),
		IdPInsecureSkipVerify: getEnvBool("IDP_INSECURE_SKIP_VERIFY", false),
		IdPAuthMode:           getEnv("IDP_AUTH_MODE", "none"),
		IdPAuthSecret:         getEnv("IDP_AUTH_SECRET", ""),
		IdPAuthHeader:         getEnv("IDP_AUTH_HEADER", "X-API-Secret"),
		IdPMaxRetries:         getEnvInt("IDP_MAX_RETRIES", 2),
		IdPRetryDelay:         getEnvDuration("IDP_RETRY_DELAY", 500*time.Millisecond),
		IdPMaxRetryDelay:      getEnvDuration("IDP_MAX_RETRY_DELAY", 5*time.Second),

		RefreshBuffer:      getEnvDuration("REFRESH_BUFFER", 60*time.Second),
		MinRefreshInterval: getEnvDuration("MIN_REFRESH_INTERVAL", 2*time.Second),
		MaxRefreshAttempts: getEnvInt("MAX_REFRESH_ATTEMPTS", 3),
		MaxTokenAge:        getEnvDuration("MAX_TOKEN_AGE", 24*time.Hour),
		SessionMaxAge:      getEnvDuration("SESSION_MAX_AGE", 24*time.Hour),

		IdleTimeout:         getEnvDuration("IDLE_TIMEOUT", 10*time.Minute),
		ActivityTimeout:     getEnvDuration("ACTIVITY_TIMEOUT", 60*time.Second),
		WarningBeforeLogout: getEnvDuration("WARNING_BEFORE_LOGOUT", 2*time.Minute),
		LoginGracePeriod:    getEnvDuration("LOGIN_GRACE_PERIOD", 3*time.Minute),
		MonitorInterval:     getEnvDuration("MONITOR_INTERVAL", 60*time.Second),
		AutoRefresh:         getEnvBool("AUTO_REFRESH", true),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		CacheBackend:   getEnv("CACHE_BACKEND", CacheBackendMemory),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		CacheKeyPrefix: getEnv("CACHE_KEY_PREFIX", "sessiond"),
		CacheTTL:       getEnvDuration("CACHE_TTL", 30*time.Second),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRate:    getEnv("RATE_LIMIT_RATE", "30-M"),
		RateLimitRedis:   getEnvBool("RATE_LIMIT_REDIS", false),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
	}
}

// Validate checks that settings required at runtime are present and coherent.
func (c *Config) Validate() error {
	if c.IssuerURL == "" && c.TokenEndpoint == "" {
		return fmt.Errorf("IDP_ISSUER_URL or IDP_TOKEN_ENDPOINT must be set")
	}
	if c.ClientID == "" {
		return fmt.Errorf("IDP_CLIENT_ID must be set")
	}
	if c.MaxRefreshAttempts < 1 {
		return fmt.Errorf("MAX_REFRESH_ATTEMPTS must be at least 1, got %d", c.MaxRefreshAttempts)
	}
	if c.WarningBeforeLogout >= c.IdleTimeout {
		return fmt.Errorf(
			"WARNING_BEFORE_LOGOUT (%v) must be shorter than IDLE_TIMEOUT (%v)",
			c.WarningBeforeLogout, c.IdleTimeout,
		)
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must be set for the postgres driver")
	}
	return nil
}

func defaultEndpoint(issuer, path string) string {
	if issuer == "" {
		return ""
	}
	return issuer + path
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
