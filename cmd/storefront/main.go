package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_storefront/internal/api"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/catalog/local"
	"github.com/fjod/go_storefront/internal/config"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/sessions"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/fjod/go_storefront/pkg/logger"
)

const (
	catalogCacheTTL = 10 * time.Minute
	sessionCartTTL  = 7 * 24 * time.Hour

	sessionIdleTTL       = 30 * time.Minute
	sessionSweepInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New("storefront", cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "bff")

	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, log,
		api.WithBreaker(circuitbreaker.DefaultConfig(), func(name string, _, to gobreaker.State) {
			m.BreakerTransition(name, to.String())
		}))

	repo, err := local.NewRepository(cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(startCtx).Err(); err != nil {
			log.Warn("redis unavailable, catalog snapshot cache will miss", "addr", cfg.RedisAddr, "error", err)
		}
	}

	providerOpts := []catalog.Option{
		catalog.WithLocal(repo),
		catalog.WithMockData(cfg.MockData),
		catalog.WithMetrics(m),
	}
	if rdb != nil {
		providerOpts = append(providerOpts, catalog.WithCache(catalog.NewRedisCache(rdb, catalogCacheTTL)))
	}
	provider := catalog.NewProvider(client, log, providerOpts...)

	slot, closeSlot, err := cartSlot(startCtx, cfg, rdb, log)
	if err != nil {
		return err
	}
	defer closeSlot()

	submitterOpts := []orders.Option{orders.WithMetrics(m)}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		journal := orders.NewKafkaJournal(brokers...)
		defer journal.Close()
		submitterOpts = append(submitterOpts, orders.WithJournal(journal))
		log.Info("pending-order journal enabled", "brokers", brokers, "topic", orders.PendingOrdersTopic)
	}
	submitter := orders.NewSubmitter(client, provider, log, submitterOpts...)
	carts := sessions.NewRegistry(slot, log, m)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go carts.Run(sweepCtx, sessionSweepInterval, sessionIdleTTL)

	router := h.NewRouter(h.RouterConfig{
		Products:       h.NewProductHandler(provider, cfg.RequestTimeout, log),
		Cart:           h.NewCartHandler(carts, provider, cfg.RequestTimeout, log),
		Checkout:       h.NewCheckoutHandler(carts, submitter, cfg.RequestTimeout, log),
		Metrics:        m,
		Gatherer:       reg,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort, "api", cfg.APIBaseURL,
			"cart_backend", cfg.CartBackend, "mock_data", cfg.MockData)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}

// cartSlot opens the durable slot session carts are written to.
func cartSlot(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *slog.Logger) (cart.Slot, func(), error) {
	noop := func() {}
	switch cfg.CartBackend {
	case config.CartBackendRedis:
		if rdb == nil {
			return nil, noop, errors.New("redis cart backend requires REDIS_ADDR")
		}
		return cart.NewRedisSlot(rdb, sessionCartTTL), noop, nil
	case config.CartBackendMongo:
		db, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, noop, err
		}
		slot := cart.NewMongoSlot(db)
		if err := slot.CreateIndexes(ctx); err != nil {
			log.Warn("failed to create cart indexes", "error", err)
		}
		return slot, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(ctx); err != nil {
				log.Warn("failed to disconnect from mongodb", "error", err)
			}
		}, nil
	case config.CartBackendFile:
		slot, err := cart.NewFileSlot(cfg.CartDir)
		if err != nil {
			return nil, noop, err
		}
		return slot, noop, nil
	default:
		return cart.NewMemorySlot(), noop, nil
	}
}
