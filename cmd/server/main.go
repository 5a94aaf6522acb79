package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/config"
	"github.com/aman-churiwal/portfolio-api/internal/logger"
	"github.com/aman-churiwal/portfolio-api/internal/server"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load env if it exists
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLog := logger.New("production")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.New(cfg.Server.Environment)

	postgres, err := storage.NewPostgres(cfg.Database.DSN, cfg.Server.Environment == "development")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Connected to database successfully")

	var redis *storage.RedisClient
	if cfg.UsesRedis() {
		redis, err = storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redis.Close()
		log.Info().Str("addr", cfg.Redis.GetRedisAddr()).Msg("Connected to redis successfully")
	}

	srv, err := server.New(cfg, log, postgres, redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build server")
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
