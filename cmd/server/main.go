package main

import (
	"context"

	"github.com/wizardconnect/match-engine/internal/app"
	"github.com/wizardconnect/match-engine/internal/cache"
	"github.com/wizardconnect/match-engine/internal/config"
	"github.com/wizardconnect/match-engine/internal/db"
	"github.com/wizardconnect/match-engine/internal/logger"
	"github.com/wizardconnect/match-engine/internal/server"
	"github.com/wizardconnect/match-engine/internal/service/matchmaker"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Engine.Validate(); err != nil {
		log.Error("invalid engine config", "err", err)
		return
	}

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, cfg.Engine)

	registrars := []server.Registrar{
		matchmaker.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
