package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
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
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SnowflakeNode int64

	FlagsFile string

	Telemetry TelemetryConfig
	Replay    ReplayConfig
	Worker    WorkerConfig
	Chat      ChatConfig
}

// TelemetryConfig controls logging and OpenTelemetry export.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelProtocol  string
	SamplingRatio float64
}

// ReplayConfig controls how the event log is read back during a rebuild.
type ReplayConfig struct {
	PageSize int
	LockTTL  time.Duration
	// Projectors limits cmd/replay to the named projectors. Empty means all.
	Projectors []string
}

// WorkerConfig controls the asynchronous command worker pool.
type WorkerConfig struct {
	Enabled        bool
	Concurrency    int
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	StaleAfter     time.Duration
	ExecuteTimeout time.Duration
}

// ChatConfig throttles calls made against the chat workspace.
type ChatConfig struct {
	RatePerSecond float64
	Burst         int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development"))

	return Config{
		AppName:           getenv("APP_SERVICE", "memberbridge"),
		AppVersion:        getenv("SERVICE_VERSION", getenv("APP_VERSION", "0.1.0")),
		Environment:       environment,
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "memberbridge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "memberbridge.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		SnowflakeNode:     getenvInt64("SNOWFLAKE_NODE", 1),
		FlagsFile:         strings.TrimSpace(getenv("FLAGS_FILE", "")),
		Telemetry: TelemetryConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OtelEnabled:   getenvBool("OTEL_ENABLED", isProduction(environment)),
			OtelProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.25),
		},
		Replay: ReplayConfig{
			PageSize:   getenvInt("REPLAY_PAGE_SIZE", 200),
			LockTTL:    getenvDuration("REPLAY_LOCK_TTL", 30*time.Minute),
			Projectors: getenvList("REPLAY_PROJECTORS"),
		},
		Worker: WorkerConfig{
			Enabled:        getenvBool("WORKER_ENABLED", true),
			Concurrency:    getenvInt("WORKER_CONCURRENCY", 4),
			BatchSize:      getenvInt("WORKER_BATCH_SIZE", 25),
			PollInterval:   getenvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:    getenvInt("WORKER_MAX_ATTEMPTS", 8),
			InitialBackoff: getenvDuration("WORKER_INITIAL_BACKOFF", 5*time.Second),
			MaxBackoff:     getenvDuration("WORKER_MAX_BACKOFF", 30*time.Minute),
			StaleAfter:     getenvDuration("WORKER_STALE_AFTER", 10*time.Minute),
			ExecuteTimeout: getenvDuration("WORKER_EXECUTE_TIMEOUT", 30*time.Second),
		},
		Chat: ChatConfig{
			RatePerSecond: getenvFloat("CHAT_RATE_PER_SECOND", 1),
			Burst:         getenvInt("CHAT_BURST", 5),
		},
	}
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return isProduction(c.Environment)
}

func isProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
