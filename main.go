package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"car-offers-bot/config"
	"car-offers-bot/monitoring"
	"car-offers-bot/notifier"
	"car-offers-bot/scraper"
	"car-offers-bot/scraper/autoplac"
	"car-offers-bot/scraper/lento"
	"car-offers-bot/scraper/otomoto"
	"car-offers-bot/scraper/sprzedajemy"
	"car-offers-bot/services"
	"car-offers-bot/storage"
	"car-offers-bot/utils"
)

func main() {
	cfg := config.Load()

	logger, err := utils.NewLoggerWithOptions(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	logger.Info("=== Car offers bot starting ===")
	logger.Info("Config: location %s | radius %dkm | max price %d | interval %v | workers %d | fetch %s | store %s",
		cfg.SearchLocation, cfg.SearchRadiusKm, cfg.MaxPrice, cfg.PollInterval(), cfg.MaxWorkers, cfg.FetchMode, cfg.StoreBackend)

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open dedup store: %v", err)
		if cfg.StoreBackend == "postgres" {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		os.Exit(1)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	var fetcher scraper.Fetcher = scraper.NewHTTPFetcher(cfg.FetchTimeout())
	if cfg.FetchMode == "browser" {
		fetcher = scraper.NewBrowserFetcher(cfg.ChromeBin, cfg.FetchTimeout())
	}

	adapters := map[string]scraper.Adapter{
		"otomoto":     otomoto.New(fetcher, logger.Named("otomoto")),
		"lento":       lento.New(fetcher, logger.Named("lento")),
		"autoplac":    autoplac.New(fetcher, logger.Named("autoplac")),
		"sprzedajemy": sprzedajemy.New(fetcher, logger.Named("sprzedajemy")),
	}
	executor := services.NewExecutor(adapters, cfg.MaxWorkers, metrics, logger)

	var sink notifier.Sink
	if cfg.DiscordToken == "" {
		logger.Warn("DISCORD_TOKEN not set, offers will only be logged")
		sink = notifier.NewLogSink(logger)
	} else {
		sink = notifier.NewDiscordSink(cfg.DiscordAPIURL, cfg.DiscordToken, cfg.DiscordChannelID, cfg.DeliveryRatePerSec)
	}

	orch := services.NewOrchestrator(services.OrchestratorConfig{
		SourceURLs:     cfg.SourceURLs(),
		PollInterval:   cfg.PollInterval(),
		RetentionDays:  cfg.RetentionDays,
		AnnounceStatus: cfg.AnnounceStatus,
	}, executor, store, sink, metrics, logger)

	var server *monitoring.Server
	if cfg.MetricsPort > 0 {
		server = monitoring.NewServer(cfg.MetricsPort, reg, orch.Health, logger)
		server.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch.Run(ctx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Monitoring server shutdown: %v", err)
		}
	}
	logger.Info("=== Car offers bot stopped ===")
}

func openStore(cfg *config.Config, logger *utils.Logger) (storage.DedupStore, error) {
	if cfg.StoreBackend == "postgres" {
		logger.Info("Using PostgreSQL dedup store (table: sent_offers)")
		return storage.NewPostgresStore(cfg.DSN())
	}
	logger.Info("Using CSV dedup store at %s", cfg.OffersCSVPath())
	return storage.NewCSVStore(cfg.OffersCSVPath())
}
