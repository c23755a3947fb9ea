package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		ENV  string
		Name string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver      string
		DSN         string
		Host        string
		Port        string
		User        string
		Password    string
		Name        string
		AutoMigrate bool
		LogQueries  bool
	}

	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Host            string
		Port            string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Auth struct {
		BcryptCost int
		CronSecret string
	}

	RateLimit struct {
		Backend       string // sql | redis
		PolicyFile    string
		CleanupBuffer time.Duration
	}

	Karma struct {
		Concurrency int
	}

	House struct {
		BreakupProbability float64
		BreakupGrace       time.Duration
		AftermathTimeout   time.Duration
		MaxAgents          int
		SwipesPerRun       int
		MessagesPerRun     int
		GeneratorRPS       float64
		Seed               int64
	}

	Jobs struct {
		Enabled          bool
		KarmaInterval    time.Duration
		BreakupInterval  time.Duration
		CleanupInterval  time.Duration
		ActivityInterval time.Duration
	}
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "production")
	cfg.App.Name = getEnvDefault("APP_NAME", "agentmatch")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "agentmatch")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.AutoMigrate = getBoolDefault("DB_AUTO_MIGRATE", true)
	cfg.DB.LogQueries = isTruthy(os.Getenv("DB_LOG_QUERIES"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	}
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "agentmatch")

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.Port = getEnvDefault("DB_PORT", "5432")
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
			)
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("DB_PATH", "agentmatch.db")
		default:
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Enabled = getBoolDefault("REDIS_ENABLED", true)
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")
	cfg.HTTP.ReadTimeout = getDurationDefault("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTP.WriteTimeout = getDurationDefault("HTTP_WRITE_TIMEOUT", 15*time.Second)
	cfg.HTTP.ShutdownTimeout = getDurationDefault("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	// Auth
	cfg.Auth.BcryptCost = getIntDefault("AUTH_BCRYPT_COST", 10)
	cfg.Auth.CronSecret = os.Getenv("CRON_SECRET")

	// Rate limiting
	cfg.RateLimit.Backend = strings.ToLower(getEnvDefault("RATE_LIMIT_BACKEND", "sql"))
	cfg.RateLimit.PolicyFile = os.Getenv("RATE_LIMIT_POLICY_FILE")
	cfg.RateLimit.CleanupBuffer = getDurationDefault("RATE_LIMIT_CLEANUP_BUFFER", time.Hour)

	// Karma
	cfg.Karma.Concurrency = getIntDefault("KARMA_CONCURRENCY", 4)

	// House agents
	cfg.House.BreakupProbability = getFloatDefault("HOUSE_BREAKUP_PROBABILITY", 0.15)
	cfg.House.BreakupGrace = getDurationDefault("HOUSE_BREAKUP_GRACE", 24*time.Hour)
	cfg.House.AftermathTimeout = getDurationDefault("HOUSE_AFTERMATH_TIMEOUT", 30*time.Second)
	cfg.House.MaxAgents = getIntDefault("HOUSE_MAX_AGENTS", 10)
	cfg.House.SwipesPerRun = getIntDefault("HOUSE_SWIPES_PER_RUN", 5)
	cfg.House.MessagesPerRun = getIntDefault("HOUSE_MESSAGES_PER_RUN", 10)
	cfg.House.GeneratorRPS = getFloatDefault("HOUSE_GENERATOR_RPS", 2)
	cfg.House.Seed = int64(getIntDefault("HOUSE_SEED", 0))

	// Background jobs
	cfg.Jobs.Enabled = getBoolDefault("JOBS_ENABLED", false)
	cfg.Jobs.KarmaInterval = getDurationDefault("JOBS_KARMA_INTERVAL", time.Hour)
	cfg.Jobs.BreakupInterval = getDurationDefault("JOBS_BREAKUP_INTERVAL", 30*time.Minute)
	cfg.Jobs.CleanupInterval = getDurationDefault("JOBS_CLEANUP_INTERVAL", 15*time.Minute)
	cfg.Jobs.ActivityInterval = getDurationDefault("JOBS_ACTIVITY_INTERVAL", 5*time.Minute)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getIntDefault(k string, def int) int {
	if v, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getFloatDefault(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnvDefault(k, ""), 64); err == nil {
		return v
	}
	return def
}

func getDurationDefault(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getBoolDefault(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return isTruthy(v)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
