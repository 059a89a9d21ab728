package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReferralConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// SnowflakeNodeID must be unique per running replica.
	SnowflakeNodeID int64

	// LinkBaseURL prefixes shareable referral links: <LinkBaseURL>/r/<slug>.
	LinkBaseURL string

	Telemetry TelemetryConfig

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

	RunMigrations bool

	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

// BootstrapConfig seeds one product with an active program and an API key on
// startup. Seeding is skipped when ProductName is empty.
type BootstrapConfig struct {
	ProductName  string
	RedirectURL  string
	WidgetSecret string
	APIKey       string
	ProgramName  string
}

// TelemetryConfig feeds the zap logger and the OpenTelemetry providers.
type TelemetryConfig struct {
	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventIngestProductRate  float64
	EventIngestProductBurst int

	BootstrapLockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "referral"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SnowflakeNodeID:   int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		LinkBaseURL:       strings.TrimRight(strings.TrimSpace(getenv("LINK_BASE_URL", "http://localhost:8080")), "/"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RunMigrations:     getenvBool("RUN_MIGRATIONS", true),
		Telemetry: TelemetryConfig{
			LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:       getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OtelProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		RateLimit: RateLimitConfig{
			Enabled:                 getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:               strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:           getenv("REDIS_PASSWORD", ""),
			RedisDB:                 getenvInt("REDIS_DB", 0),
			EventIngestProductRate:  getenvFloat("RATE_LIMIT_EVENT_PRODUCT_RATE", 50),
			EventIngestProductBurst: getenvInt("RATE_LIMIT_EVENT_PRODUCT_BURST", 100),
			BootstrapLockTTLSeconds: getenvInt("RATE_LIMIT_BOOTSTRAP_LOCK_TTL_SECONDS", 30),
		},
		Bootstrap: BootstrapConfig{
			ProductName:  strings.TrimSpace(getenv("BOOTSTRAP_PRODUCT_NAME", "")),
			RedirectURL:  strings.TrimSpace(getenv("BOOTSTRAP_PRODUCT_REDIRECT_URL", "")),
			WidgetSecret: getenv("BOOTSTRAP_WIDGET_SECRET", ""),
			APIKey:       getenv("BOOTSTRAP_API_KEY", ""),
			ProgramName:  strings.TrimSpace(getenv("BOOTSTRAP_PROGRAM_NAME", "Default program")),
		},
	}

	return cfg
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
