package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/api"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New("replayer", cfg.LogLevel)

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, log)
	replayer := orders.NewReplayer(client, log, brokers...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		replayer.Run(ctx)
	}()
	log.Info("replayer started", "brokers", brokers, "topic", orders.PendingOrdersTopic, "api", cfg.APIBaseURL)

	<-ctx.Done()
	log.Info("shutting down replayer...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("replayer stopped cleanly")
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("replayer didn't stop in time")
	}

	if err := replayer.Close(); err != nil {
		log.Error("failed to close kafka reader", "error", err)
	}
}
