package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatguard/internal/alerts"
	"chatguard/internal/api"
	"chatguard/internal/config"
	"chatguard/internal/engine"
	"chatguard/internal/ingest"
	"chatguard/internal/logging"
	"chatguard/internal/model"
	"chatguard/internal/notify"
	"chatguard/internal/ocr"
	"chatguard/internal/pipeline"
	"chatguard/internal/ratelimit"
	"chatguard/internal/security"
	"chatguard/internal/stats"
	"chatguard/internal/storage"
)

var version = "dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML or JSON)")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("chatguard %s\n", version)
		os.Exit(0)
	}

	var mgr *config.Manager
	if configPath != "" {
		m, err := config.NewManager(config.ResolvePath(configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		mgr = m
	} else {
		mgr = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := mgr.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting chatguard", "version", version, "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if store != nil {
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := store.Init(initCtx)
		cancel()
		if err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	statsStore := stats.NewStore()
	limiter := ratelimit.New(cfg.RateLimit, logger)
	defer limiter.Stop()
	monitor := security.NewMonitor(cfg.Security, logger)

	var notifier engine.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewTelegram(cfg.Notify, logger)
	}

	eng, err := engine.NewEngine(cfg, logger, alertsStore, notifier)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	var extractor ocr.Extractor
	if cfg.OCR.Enabled {
		extractor = ocr.NewTesseract(cfg.OCR, logger)
	}

	pipe := pipeline.New(eng, limiter, monitor, store, extractor, statsStore, logger)
	messages := make(chan model.InboundMessage, cfg.Ingest.ChannelBuffer)
	pipe.Start(ctx, messages)

	ingest.StartKafka(ctx, mgr, messages, logger)
	ingest.StartREST(ctx, mgr, messages, logger)
	api.Start(ctx, mgr, alertsStore, statsStore, limiter, monitor, eng, logger, version)

	if configPath != "" {
		go mgr.Watch(3*time.Second,
			func(next *config.Config) {
				if err := eng.UpdateConfig(next); err != nil {
					logger.Error("config reload rejected", "err", err)
					return
				}
				logger.Info("config reloaded")
			},
			func(err error) {
				logger.Warn("config watch error", "err", err)
			},
			ctx.Done(),
		)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := monitor.Sweep(); removed > 0 {
					logger.Debug("security monitor sweep", "removed", removed)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}
