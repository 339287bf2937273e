package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/wizardconnect/match-engine/internal/cache"
	"github.com/wizardconnect/match-engine/internal/config"
)

// AppContext holds shared dependencies (DB, Redis, Logger, engine config).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Engine     config.Engine
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, engine config.Engine) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Engine:     engine,
	}
}
