package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	LLMProviderOpenAI    = "openai"
	LLMProviderSynthetic = "synthetic"

	WorkerModeQueue = "queue"
	WorkerModePoll  = "poll"

	ExportBackendFile  = "file"
	ExportBackendMinIO = "minio"
	ExportBackendNone  = "none"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	JWTSecret   string
	GeoIPDBPath string
	CORSOrigins []string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string
	LLMTimeout    time.Duration

	GenerationProfilePath string

	RedisAddr         string
	RedisPassword     string
	WorkerMode        string
	WorkerConcurrency int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	StaleAfter        time.Duration
	SweepInterval     time.Duration

	ExportBackend  string
	StoragePath    string
	StorageBaseURL string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	HTTPShutdownTimeout time.Duration
	RateLimitPerMin     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./novelforge.db"),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderOpenAI)),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:     os.Getenv("OPENAI_ORG"),
		LLMTimeout:    time.Second * time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 180)),

		GenerationProfilePath: os.Getenv("GENERATION_PROFILE_PATH"),

		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		WorkerMode:        strings.ToLower(getEnv("WORKER_MODE", WorkerModeQueue)),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		PollInterval:      time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		LeaseDuration:     time.Second * time.Duration(getEnvInt("WORKER_LEASE_SECONDS", 900)),
		StaleAfter:        time.Minute * time.Duration(getEnvInt("STALE_AFTER_MINUTES", 30)),
		SweepInterval:     time.Minute * time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 5)),

		ExportBackend:  strings.ToLower(getEnv("EXPORT_BACKEND", ExportBackendFile)),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "manuscripts"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		HTTPShutdownTimeout: time.Second * time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 20)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option combinations that would only fail later at runtime.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
		if c.WorkerMode == WorkerModePoll && c.WorkerConcurrency > 1 {
			return fmt.Errorf("sqlite store supports a single poll worker, got WORKER_CONCURRENCY=%d", c.WorkerConcurrency)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LLMProvider {
	case LLMProviderOpenAI, LLMProviderSynthetic:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.WorkerMode {
	case WorkerModeQueue:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required in queue mode")
		}
	case WorkerModePoll:
	default:
		return fmt.Errorf("unknown WORKER_MODE %q", c.WorkerMode)
	}
	switch c.ExportBackend {
	case ExportBackendFile, ExportBackendNone:
	case ExportBackendMinIO:
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio export backend")
		}
	default:
		return fmt.Errorf("unknown EXPORT_BACKEND %q", c.ExportBackend)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("STALE_AFTER_MINUTES must be positive")
	}
	if c.LeaseDuration <= 0 {
		return fmt.Errorf("WORKER_LEASE_SECONDS must be positive")
	}
	if c.SweepInterval <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_MINUTES and WORKER_POLL_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
