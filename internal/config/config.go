package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReferralConfigHolder),
	fx.Invoke(func(cfg Config) error { return cfg.Validate() }),
)

var (
	ErrMissingWebhookSecret = errors.New("webhook secret is required")
	ErrUnsupportedDatabase  = errors.New("unsupported database type")
	ErrInvalidCallTimeout   = errors.New("webhook call timeout must be positive")
	ErrMissingAdminAPIKey   = errors.New("admin api key is required in production")
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	AutoMigrate       bool
	AdminEmail        string
	AdminName         string
	AdminAPIKey       string

	Webhook     WebhookConfig
	RateLimit   RateLimitConfig
	Identity    IdentityConfig
	Email       EmailConfig
	Maintenance MaintenanceConfig
	Telemetry   TelemetryConfig
	ConfigPath  string
}

type WebhookConfig struct {
	Secret        string
	CallTimeout   time.Duration
	SignupLockTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	WebhookRate   float64
	WebhookBurst  int
}

type IdentityConfig struct {
	APIURL      string
	APIKey      string
	RedirectURL string
}

// MaintenanceConfig drives the delivery journal housekeeping jobs.
type MaintenanceConfig struct {
	Enabled    bool
	Interval   time.Duration
	StaleAfter time.Duration
	Retention  time.Duration
	BatchSize  int
}

// TelemetryConfig holds log and OTLP exporter settings.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelProtocol  string
	SamplingRatio float64
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "referrals"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "referrals"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		AutoMigrate:       getenvBool("AUTO_MIGRATE", true),
		AdminEmail:        strings.TrimSpace(getenv("ADMIN_EMAIL", "")),
		AdminName:         strings.TrimSpace(getenv("ADMIN_NAME", "Referrals Admin")),
		AdminAPIKey:       strings.TrimSpace(getenv("ADMIN_API_KEY", "")),

		Webhook: WebhookConfig{
			Secret:        getenv("WEBHOOK_SECRET", ""),
			CallTimeout:   getenvDuration("WEBHOOK_CALL_TIMEOUT", 5*time.Second),
			SignupLockTTL: getenvDuration("SIGNUP_LOCK_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
			WebhookRate:   getenvFloat("WEBHOOK_RATE_PER_SECOND", 20),
			WebhookBurst:  getenvInt("WEBHOOK_BURST", 40),
		},
		Identity: IdentityConfig{
			APIURL:      strings.TrimRight(strings.TrimSpace(getenv("IDENTITY_API_URL", "")), "/"),
			APIKey:      strings.TrimSpace(getenv("IDENTITY_API_KEY", "")),
			RedirectURL: strings.TrimSpace(getenv("INVITATION_REDIRECT_URL", "")),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@referrals.local"),
		},
		Maintenance: MaintenanceConfig{
			Enabled:    getenvBool("MAINTENANCE_ENABLED", true),
			Interval:   getenvDuration("MAINTENANCE_INTERVAL", 10*time.Minute),
			StaleAfter: getenvDuration("DELIVERY_STALE_AFTER", 15*time.Minute),
			Retention:  getenvDuration("DELIVERY_RETENTION", 90*24*time.Hour),
			BatchSize:  getenvInt("MAINTENANCE_BATCH_SIZE", 500),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		ConfigPath: strings.TrimSpace(getenv("REFERRALS_CONFIG_PATH", "")),
	}
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return ErrMissingWebhookSecret
	}
	if c.Webhook.CallTimeout <= 0 {
		return ErrInvalidCallTimeout
	}
	if c.IsProduction() && strings.TrimSpace(c.AdminAPIKey) == "" {
		return ErrMissingAdminAPIKey
	}
	switch c.DBType {
	case "postgres", "mysql", "sqlite":
	default:
		return ErrUnsupportedDatabase
	}
	return nil
}

// IsDevelopment reports environments where debug logging is on by default.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return c.Telemetry.LogLevel == "debug"
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("5s") or a bare number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
