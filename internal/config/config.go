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
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host string
		Port string
	}

	Engine Engine
}

// Engine holds the matchmaking knobs: scoring weights, ranking limits and
// the concurrency/retry budget for a generation run.
type Engine struct {
	// TopK is the default number of ranked matches per user. Campaigns may
	// override it individually.
	TopK int

	// MinScore is the floor below which a candidate pair is not ranked.
	MinScore int

	// Scoring weights. Must sum to 1.
	WeightPersonality float64
	WeightInterests   float64
	WeightValues      float64
	WeightLifestyle   float64

	// Crush boost multipliers applied to a pair score before ranking.
	OneWayCrushBoost float64
	MutualCrushBoost float64

	// ScoreWorkers bounds the worker pool used for pairwise scoring.
	ScoreWorkers int

	// GenerationTimeout aborts a generation run that overruns; the lock TTL
	// is derived from it so a crashed run cannot wedge the campaign.
	GenerationTimeout time.Duration

	// Retry budget for the final match-set write-back.
	StoreRetries      int
	StoreRetryBackoff time.Duration
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "match_engine")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "wizardconnect")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "127.0.0.1")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// Engine
	cfg.Engine.TopK = getEnvInt("ENGINE_TOP_K", 7)
	cfg.Engine.MinScore = getEnvInt("ENGINE_MIN_SCORE", 30)
	cfg.Engine.WeightPersonality = getEnvFloat("ENGINE_WEIGHT_PERSONALITY", 0.30)
	cfg.Engine.WeightInterests = getEnvFloat("ENGINE_WEIGHT_INTERESTS", 0.25)
	cfg.Engine.WeightValues = getEnvFloat("ENGINE_WEIGHT_VALUES", 0.25)
	cfg.Engine.WeightLifestyle = getEnvFloat("ENGINE_WEIGHT_LIFESTYLE", 0.20)
	cfg.Engine.OneWayCrushBoost = getEnvFloat("ENGINE_ONEWAY_CRUSH_BOOST", 1.1)
	cfg.Engine.MutualCrushBoost = getEnvFloat("ENGINE_MUTUAL_CRUSH_BOOST", 1.2)
	cfg.Engine.ScoreWorkers = getEnvInt("ENGINE_SCORE_WORKERS", 8)
	cfg.Engine.GenerationTimeout = getEnvDuration("ENGINE_GENERATION_TIMEOUT", 5*time.Minute)
	cfg.Engine.StoreRetries = getEnvInt("ENGINE_STORE_RETRIES", 3)
	cfg.Engine.StoreRetryBackoff = getEnvDuration("ENGINE_STORE_RETRY_BACKOFF", 500*time.Millisecond)

	return cfg
}

// Validate rejects an engine configuration the scorer cannot honor.
func (e Engine) Validate() error {
	sum := e.WeightPersonality + e.WeightInterests + e.WeightValues + e.WeightLifestyle
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1, got %.3f", sum)
	}
	if e.TopK < 1 {
		return fmt.Errorf("top-k must be at least 1, got %d", e.TopK)
	}
	if e.MinScore < 0 || e.MinScore > 100 {
		return fmt.Errorf("min score must be within [0,100], got %d", e.MinScore)
	}
	return nil
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
