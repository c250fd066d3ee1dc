package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/feedsim/internal/feedsim"
	"github.com/takuya-f/kabu-recorder/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	symbols := cfg.Feed.Symbols
	if len(symbols) == 0 {
		symbols = []string{"7203", "9984", "6758"}
	}
	basePrices := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		basePrices[sym] = 1000 + float64(i)*500
	}

	rnd := feedsim.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	sim := feedsim.NewSimulator(logger, symbols, basePrices, cfg.Feed.SimInterval, rnd, feedsim.RealClock{})

	ctx, cancel := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/kabusapi/websocket", sim.Handler(ctx))
	mux.HandleFunc("/kabusapi/token", sim.TokenHandler())
	mux.HandleFunc("/kabusapi/unregister/all", sim.UnregisterAllHandler())
	mux.HandleFunc("/kabusapi/register", sim.RegisterHandler())

	srv := &http.Server{Addr: cfg.Feed.SimPort, Handler: mux}

	go func() {
		logger.Info("Feed Simulator Started",
			zap.String("port", cfg.Feed.SimPort),
			zap.Strings("symbols", symbols),
			zap.Duration("interval", cfg.Feed.SimInterval))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancel()
	srv.Shutdown(context.Background())
	logger.Info("Shutdown Complete")
}
