package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"equipment-loans/internal/config"
	"equipment-loans/internal/log"
	"equipment-loans/internal/retry"
	"equipment-loans/middleware/loadshed"
	"equipment-loans/middleware/loadshed/application"
	"equipment-loans/middleware/loadshed/domain"
	"equipment-loans/middleware/loadshed/infra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "loans-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(envFile())
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	baseLogger, closeLog := log.NewLogger(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: log.Format(cfg.LogFormat),
	})
	defer closeLog()
	logger := baseLogger.With(log.String("instance", cfg.InstanceID))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	startup := retry.ExponentialPolicy{InitialInterval: 500 * time.Millisecond, MaxAttempts: cfg.StartupRetries}
	notify := func(what string) func(error, time.Duration) {
		return func(err error, d time.Duration) {
			logger.Warn(what+" not ready, retrying", log.Error(err), log.Duration("retry_in", d))
		}
	}
	err = retry.Do(ctx, startup, nil, notify("redis"), func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}

	loans, closeLoans, err := openLoanStore(ctx, cfg, startup, notify("postgres"), logger)
	if err != nil {
		return err
	}
	defer closeLoans()

	shared := infra.NewRedisStore(rdb, infra.WithOpTimeout(cfg.RedisOpTimeout))
	stats := infra.NewRedisStatsStore(rdb, infra.WithStatsPrefix(cfg.StatsPrefix))

	observer := infra.NewPromObserver("loans", prometheus.Labels{"instance": cfg.InstanceID})
	observer.MustRegister(prometheus.DefaultRegisterer)

	meter := application.SaturationMeter{
		Counters:  shared,
		Window:    cfg.SaturationWindow,
		Threshold: cfg.SaturationThreshold,
		Observer:  observer,
		Logger:    logger,
	}
	queue := application.WriteQueue{Store: shared}
	admission := application.Admission{
		Signal:     meter,
		Queue:      queue,
		Loans:      loans,
		InstanceID: cfg.InstanceID,
		Observer:   observer,
		Logger:     logger,
	}
	api := &loadshed.API{
		Admission: admission,
		Inventory: application.ReadThroughCache[[]domain.Equipment]{
			Snapshots: shared,
			TTL:       cfg.CacheTTL,
			Observer:  observer,
			Logger:    logger,
		},
		Returns:    application.ReturnService{Loans: loans, Logger: logger},
		Meter:      meter,
		Queue:      queue,
		Loans:      loans,
		Stats:      stats,
		InstanceID: cfg.InstanceID,
		Logger:     logger,
	}

	var throttle domain.ThrottleStore
	if cfg.RateEnabled {
		ts := infra.NewThrottleStore(cfg.RateRPS, cfg.RateBurst)
		ts.StartJanitor(ctx)
		throttle = ts
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: loadshed.NewRouter(loadshed.RouterOptions{
			API: api,
			Throttle: loadshed.ThrottleOptions{
				Store:      throttle,
				KeyHeader:  loadshed.HeaderRequester,
				RetryAfter: cfg.RetryAfter,
			},
			InFlight: loadshed.InFlightOptions{
				Max:  cfg.ConcurrencyMax,
				Wait: cfg.ConcurrencyTimeout,
			},
			Stats:   loadshed.StatsOptions{Store: stats, Logger: logger},
			Metrics: promhttp.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	worker := application.DrainWorker{
		Drainer: application.Drainer{
			Meter:    meter,
			Queue:    queue,
			Commit:   admission,
			LowWater: cfg.LowWaterMark,
			Observer: observer,
			Logger:   logger,
		},
		Interval: cfg.DrainInterval,
		Logger:   logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("loans-api listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("load shedding configured",
		log.Int64("threshold", cfg.SaturationThreshold),
		log.Duration("window", cfg.SaturationWindow),
		log.Int64("low_water_mark", cfg.LowWaterMark),
		log.Duration("cache_ttl", cfg.CacheTTL),
		log.Duration("drain_interval", cfg.DrainInterval),
	)
	logger.Info("admission limits configured",
		log.Bool("rate_enabled", cfg.RateEnabled),
		log.Int("concurrency_max", cfg.ConcurrencyMax),
		log.Bool("postgres", cfg.DatabaseURL != ""),
	)

	return g.Wait()
}

func envFile() string {
	if f := os.Getenv("ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

// openLoanStore conecta no Postgres quando DATABASE_URL está definido; sem ele,
// usa a fonte de verdade em memória com um inventário de demonstração.
func openLoanStore(
	ctx context.Context, cfg config.Config, p retry.ExponentialPolicy, notify func(error, time.Duration), logger log.FieldLogger,
) (domain.LoanStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory loan store")
		return demoLoans(), func() {}, nil
	}

	var pg *infra.PostgresLoans
	err := retry.Do(ctx, p, nil, notify, func(ctx context.Context) error {
		var err error
		pg, err = infra.NewPostgresLoans(ctx, cfg.DatabaseURL, infra.PoolConfig{})
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connect error: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func demoLoans() *infra.MemoryLoans {
	s := infra.NewMemoryLoans()
	for _, e := range []domain.Equipment{
		{ID: 1, Name: "Dell Latitude 5420", Type: "Laptop", TotalQty: 15, AvailableQty: 15},
		{ID: 2, Name: "HP ProDesk 400", Type: "PC", TotalQty: 8, AvailableQty: 8},
		{ID: 3, Name: "Logitech M185", Type: "Mouse", TotalQty: 40, AvailableQty: 40},
		{ID: 4, Name: "Epson PowerLite", Type: "Projector", TotalQty: 5, AvailableQty: 5},
	} {
		s.SetEquipment(e)
	}
	return s
}
