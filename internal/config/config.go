package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"uitforum/internal/utils"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port                string
	DatabaseURL         string
	StoreBackend        string
	JWTSecret           string
	FirebaseCredentials string
	FirebaseProjectID   string
	DefaultCommunityID  string
	FunctionTimeout     time.Duration
	TriggerWorkers      int
	TriggerQueueSize    int
	TriggerRetries      int
	CORSOrigins         []string
	LogLevel            string
	LogFormat           string
}

// Load 先读取 .env（不存在时忽略），再读取环境变量
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getenv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		StoreBackend:        strings.ToLower(getenv("STORE_BACKEND", StorePostgres)),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		DefaultCommunityID:  os.Getenv("DEFAULT_COMMUNITY_ID"),
		FunctionTimeout:     utils.StringToDuration(os.Getenv("FUNCTION_TIMEOUT"), 60*time.Second),
		TriggerWorkers:      utils.StringToInt(os.Getenv("TRIGGER_WORKERS"), 4),
		TriggerQueueSize:    utils.StringToInt(os.Getenv("TRIGGER_QUEUE_SIZE"), 1000),
		TriggerRetries:      utils.StringToInt(os.Getenv("TRIGGER_RETRIES"), 0),
		CORSOrigins:         utils.SplitAndTrim(getenv("CORS_ORIGINS", "*"), ","),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFormat:           strings.ToLower(os.Getenv("LOG_FORMAT")),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return nil, errors.New("STORE_BACKEND must be memory or postgres")
	}
	if cfg.TriggerRetries < 0 {
		cfg.TriggerRetries = 0
	}
	return cfg, nil
}

// NewLogger 按 LOG_LEVEL / LOG_FORMAT 构造 logrus 日志
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
