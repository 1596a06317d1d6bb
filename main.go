package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"arenago/internal/config"
	"arenago/internal/database/db_client"
	"arenago/internal/http/http_server"
	"arenago/internal/redis/redis_client"
	"arenago/internal/services/auth"
	"arenago/internal/services/space"
	"arenago/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis (space-layout cache)
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort,
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Services: identity + space directory
	authService := auth.NewAuthService(pgDb, cfg.JwtSecret, cfg.TokenTTL)
	spaceService := space.NewSpaceService(redisClient, pgDb)

	// 6. Session engine: hub + WS server
	hub := ws.NewHub(spaceService)
	wsSrv := ws.NewWsServer(hub, authService)

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, authService, spaceService)

	go func() {
		<-ctx.Done()
		Log.Info("shutting down")
		if err := httpServer.Dispose(); err != nil {
			Log.Warn("http_shutdown", zap.Error(err))
		}
	}()

	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
