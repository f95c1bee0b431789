package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"autoria-harvester/internal/config"
	"autoria-harvester/internal/dump"
	"autoria-harvester/internal/extract"
	"autoria-harvester/internal/fetcher"
	"autoria-harvester/internal/harvest"
	"autoria-harvester/internal/logging"
	"autoria-harvester/internal/metrics"
	"autoria-harvester/internal/ops"
	"autoria-harvester/internal/phone"
	"autoria-harvester/internal/producer"
	"autoria-harvester/internal/queue"
	"autoria-harvester/internal/schedule"
	"autoria-harvester/internal/storage/postgres"
	"autoria-harvester/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	runOnce := flag.Bool("once", false, "Run a single scrape cycle and exit")
	dumpOnly := flag.Bool("dump", false, "Write a database dump and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, *runOnce, *dumpOnly, logger); err != nil {
		logger.Error("harvester exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	stop context.CancelFunc,
	cfg config.Config,
	runOnce, dumpOnly bool,
	logger *zap.Logger,
) error {
	dumper := dump.NewManager(dump.Config{
		Dir: cfg.Dump.Dir,
		DSN: cfg.DB.DSN,
	}, logger.Named("dump"))

	if dumpOnly {
		_, err := dumper.Run(ctx)
		return err
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	fetchClient := fetcher.New(fetcher.Config{
		Timeout:    cfg.HTTPTimeout(),
		MaxRetries: cfg.HTTP.MaxRetries,
	}, logger.Named("fetch"))

	phones := phone.New(phone.Config{
		BaseURL: cfg.Phone.BaseURL,
		Timeout: cfg.PhoneTimeout(),
	}, logger.Named("phone"))

	prod := producer.New(fetchClient, producer.Config{
		StartURL:  cfg.Scrape.StartURL,
		Workers:   cfg.Scrape.Workers,
		PageDelay: cfg.PageDelay(),
	}, logger.Named("producer"))

	pool := worker.NewPool(
		fetchClient,
		extract.New(logger.Named("extract")),
		phones,
		store,
		cfg.Scrape.Workers,
		logger.Named("worker"),
	)

	runner := harvest.NewRunner(prod, pool, func() harvest.Queue {
		return queue.New(cfg.Scrape.QueueCapacity)
	}, logger.Named("runner"))

	opsServer := ops.NewServer(cfg.Ops.Port, store, logger.Named("ops"))
	go func() {
		if err := opsServer.ListenAndServe(); err != nil {
			logger.Error("ops server error", zap.Error(err))
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops shutdown error", zap.Error(err))
		}
	}()

	if runOnce {
		runner.Run(ctx)
		return nil
	}

	// Initial cycle and dump on startup, then daily schedules.
	runner.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if _, err := dumper.Run(ctx); err != nil {
		logger.Error("initial dump failed", zap.Error(err))
	}

	scrapeAt, err := config.ParseClock(cfg.Scrape.DailyAt)
	if err != nil {
		return fmt.Errorf("scrape schedule: %w", err)
	}
	dumpAt, err := config.ParseClock(cfg.Dump.DailyAt)
	if err != nil {
		return fmt.Errorf("dump schedule: %w", err)
	}

	go schedule.NewDaily("scrape", scrapeAt, func(ctx context.Context) {
		runner.Run(ctx)
	}, logger.Named("schedule")).Run(ctx)

	go schedule.NewDaily("dump", dumpAt, func(ctx context.Context) {
		if _, err := dumper.Run(ctx); err != nil {
			logger.Error("scheduled dump failed", zap.Error(err))
		}
	}, logger.Named("schedule")).Run(ctx)

	<-ctx.Done()
	logger.Info("shutdown initiated")
	return nil
}
