package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fjod/go_storefront/internal/api"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/catalog/local"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/tui"
	"github.com/fjod/go_storefront/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slot, err := cart.NewFileSlot(cfg.CartDir)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file next to the cart.
	logFile, err := os.OpenFile(filepath.Join(cfg.CartDir, "shop.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log := logger.NewWithWriter(logFile, "shop", cfg.LogLevel)

	repo, err := local.NewRepository(cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, log)
	provider := catalog.NewProvider(client, log,
		catalog.WithLocal(repo),
		catalog.WithMockData(cfg.MockData),
	)

	var opts []orders.Option
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		journal := orders.NewKafkaJournal(brokers...)
		defer journal.Close()
		opts = append(opts, orders.WithJournal(journal))
	}
	submitter := orders.NewSubmitter(client, provider, log, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := cart.NewStore(ctx, slot, log)
	model := tui.New(ctx, catalog.NewFeed(provider), store, submitter)

	log.Info("shop starting", "api", cfg.APIBaseURL, "cart_dir", cfg.CartDir, "mock_data", cfg.MockData)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return err
	}
	return nil
}
