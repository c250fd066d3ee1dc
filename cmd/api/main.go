package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/api/internal/query"
	"github.com/takuya-f/kabu-recorder/cmd/api/internal/server"
	"github.com/takuya-f/kabu-recorder/pkg/cache"
	"github.com/takuya-f/kabu-recorder/pkg/config"
	"github.com/takuya-f/kabu-recorder/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	client, err := store.NewDynamoClient(ctx, cfg.Dynamo.Region, cfg.Dynamo.Endpoint)
	if err != nil {
		logger.Fatal("Failed to initialize DynamoDB client", zap.Error(err))
	}
	recordStore := store.NewDynamoStore(client, cfg.Dynamo.Table)
	svc := query.NewService(recordStore, cfg.Query.SizeBudgetBytes, logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var snapshots server.SnapshotReader
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, /api/latest disabled", zap.Error(err))
		rdb.Close()
	} else {
		snapshots = cache.NewSnapshotCache(rdb, cfg.Redis.SnapshotTTL)
		defer rdb.Close()
	}

	router := server.NewRouter(svc, snapshots, cfg.App.CORSOrigins, logger)
	srv := &http.Server{Addr: cfg.App.Port, Handler: router}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port), zap.String("table", cfg.Dynamo.Table))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
