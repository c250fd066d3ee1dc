package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/ingestor/internal/ingestor"
	"github.com/takuya-f/kabu-recorder/cmd/ingestor/internal/kabus"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := store.NewDynamoClient(ctx, cfg.Dynamo.Region, cfg.Dynamo.Endpoint)
	if err != nil {
		logger.Fatal("Failed to initialize DynamoDB client", zap.Error(err))
	}
	recordStore := store.NewDynamoStore(client, cfg.Dynamo.Table)
	logger.Info("DynamoDB store initialized", zap.String("table", cfg.Dynamo.Table), zap.String("region", cfg.Dynamo.Region))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var snapshots ingestor.SnapshotWriter
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, latest-snapshot cache disabled", zap.Error(err))
		rdb.Close()
	} else {
		snapshots = cache.NewSnapshotCache(rdb, cfg.Redis.SnapshotTTL)
		defer rdb.Close()
	}

	// Refresh push registrations before streaming so the feed only sends
	// the configured symbols
	if cfg.Feed.APIPassword != "" && len(cfg.Feed.Symbols) > 0 {
		registerSymbols(ctx, cfg, logger)
	} else {
		logger.Info("Skipping symbol registration (no api password or symbols configured)")
	}

	in := ingestor.New(cfg, logger, ingestor.WebsocketDialer{}, recordStore, snapshots)

	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping ingestor...")
	cancel()
	<-done
	logger.Info("Ingestor exited cleanly")
}

func registerSymbols(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	kc := kabus.NewClient(cfg.Feed.APIBaseURL, logger)

	token, err := kc.Token(ctx, cfg.Feed.APIPassword)
	if err != nil {
		logger.Fatal("Failed to obtain kabus token", zap.Error(err))
	}

	if err := kc.UnregisterAll(ctx, token); err != nil {
		logger.Warn("Failed to clear existing registrations", zap.Error(err))
	}

	symbols := make([]kabus.RegisterSymbol, 0, len(cfg.Feed.Symbols))
	for _, s := range cfg.Feed.Symbols {
		symbols = append(symbols, kabus.RegisterSymbol{Symbol: s, Exchange: cfg.Feed.Exchange})
	}

	if err := kc.Register(ctx, token, symbols); err != nil {
		logger.Fatal("Failed to register symbols", zap.Error(err))
	}
	logger.Info("Registered push symbols", zap.Int("count", len(symbols)))
}
