package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"auction_go/internal/api"
	"auction_go/internal/domain"
	"auction_go/internal/engine"
	"auction_go/internal/event"
	"auction_go/internal/infra"
	auctionredis "auction_go/internal/infra/redis"
	"auction_go/internal/infra/storage"
	"auction_go/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultConfigPath is where Initialize looks when no path is given.
const DefaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Redis   *goredis.Client
	Mirror  *auctionredis.Mirror
	Ledger  *engine.Ledger
	Live    *service.LiveState
	Hub     *api.Hub
	Server  *api.Server
	Metrics *infra.Metrics

	registry *prometheus.Registry
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration from path and wires every component.
func (b *Bootstrap) Initialize(ctx context.Context, path string) error {
	slog.Info("🚀 Bootstrapping Auction Go...")

	// 1. Load Config
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	return b.Wire(ctx, cfg)
}

// Wire builds the components from an already loaded configuration.
func (b *Bootstrap) Wire(ctx context.Context, cfg *infra.Config) error {
	b.Config = cfg
	b.Metrics = infra.GlobalMetrics

	policy, err := domain.ParsePersistencePolicy(cfg.Ledger.PersistencePolicy)
	if err != nil {
		return err
	}
	startPolicy, err := domain.ParseStartPolicy(cfg.Ledger.StartPolicy)
	if err != nil {
		return err
	}

	// 3. Initialize Storage (DB)
	var durable domain.AuctionStore
	if policy != domain.MemoryOnly {
		store, err := storage.NewStorage(storage.Options{
			Driver:       cfg.Storage.Driver,
			DSN:          cfg.Storage.DSN,
			OpTimeout:    cfg.Storage.OpTimeout,
			MaxOpenConns: cfg.Storage.MaxOpenConns,
		})
		if err != nil {
			return err
		}
		b.Storage = store
		durable = store
		slog.Info("✅ Database initialized", slog.String("driver", cfg.Storage.Driver))
	}

	// 4. Redis (optional)
	var counters domain.CounterStore
	if cfg.Redis.Enabled {
		client, err := auctionredis.NewClient(ctx, auctionredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			b.Close()
			return err
		}
		b.Redis = client
		b.Mirror = auctionredis.NewMirror(client, cfg.Redis.LiveKey, cfg.Redis.Channel)
		if cfg.Ledger.CounterBackend == infra.CounterBackendRedis {
			counters = auctionredis.NewCounter(client)
		}
		slog.Info("✅ Redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	// 5. Ledger and live view
	b.Live = service.NewLiveState()
	b.Ledger, err = engine.NewLedger(engine.LedgerConfig{
		Durable:     durable,
		Counters:    counters,
		Policy:      policy,
		StartPolicy: startPolicy,
		Live:        b.Live,
		Metrics:     b.Metrics,
	})
	if err != nil {
		b.Close()
		return err
	}

	if err := b.Live.Rebuild(ctx, b.Ledger); err != nil {
		b.Close()
		return fmt.Errorf("failed to rebuild live state: %w", err)
	}

	// 6. Metrics
	b.registry = prometheus.NewRegistry()
	b.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := infra.RegisterMetrics(b.registry, b.Metrics); err != nil {
		b.Close()
		return err
	}

	// 7. HTTP surface
	b.Hub = api.NewHub(b.Metrics)
	b.Live.Subscribe(b.Hub.Broadcast)
	if b.Mirror != nil {
		b.Live.Subscribe(b.Mirror.Offer)
	}
	b.Server = api.NewServer(api.Config{
		Dispatcher:  engine.NewDispatcher(b.Ledger, b.Live),
		Live:        b.Live,
		Reader:      b.Ledger,
		Stats:       service.NewStatsService(b.Ledger),
		Hub:         b.Hub,
		Metrics:     b.Metrics,
		Gatherer:    b.registry,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	event.Warmup()
	slog.Info("✅ Ledger ready",
		slog.String("persistence", string(policy)),
		slog.String("start_policy", string(startPolicy)),
		slog.String("counter_backend", cfg.Ledger.CounterBackend))
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down within the configured timeout.
func (b *Bootstrap) Run(ctx context.Context) error {
	go b.Hub.Run(ctx)
	if b.Mirror != nil {
		go b.Mirror.Run(ctx)
	}

	srv := &http.Server{
		Addr:              b.Config.Server.Addr,
		Handler:           b.Server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("🌐 HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), b.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases storage and Redis connections.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close database", slog.Any("error", err))
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			slog.Warn("Failed to close redis", slog.Any("error", err))
		}
	}
}
