package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/ledger"
	"server/internal/middleware"
	"server/internal/orchestrator"
	"server/internal/provider"
	"server/internal/resultstore"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		creditLedger domain.Ledger
		results      domain.ResultStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: db connection failed")
		}
		defer pool.Close()
		creditLedger = ledger.NewPostgres(pool)
		results = resultstore.NewPostgres(pool)
	} else {
		logger.Warn().Msg("api: DATABASE_URL not set, using in-memory ledger and filesystem results")
		creditLedger = ledger.NewMemoryWithDefault(cfg.DevStartingCredits)
		results = newFilesystemStore(cfg, logger)
	}

	providers, defaultProvider := initProviders(cfg, logger)

	orch := orchestrator.New(creditLedger, results, providers, defaultProvider, orchestrator.Config{
		DefaultPollInterval: cfg.PollInterval,
		MaxPollInterval:     cfg.MaxPollInterval,
		DefaultMaxWait:      cfg.MaxWait,
		TransportErrorLimit: cfg.TransportErrorLimit,
		HandleTTL:           cfg.HandleTTL,
	}, logger)
	go orch.Run(ctx)

	app := handlers.NewApp(orch, creditLedger, handlers.Pricing{CreditsPerUnit: cfg.CreditCostPerUnit}, logger)
	router := httpapi.NewRouter(app, cfg, logger, countryLookup(cfg, logger))
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}

// initProviders builds the provider registry and returns the name requests
// without an explicit provider resolve to. Without a base URL the configured
// name is unreachable, so the default must be the synthetic provider.
func initProviders(cfg *infra.Config, logger infra.Logger) (map[string]domain.ProviderClient, string) {
	providers := map[string]domain.ProviderClient{
		"synthetic": provider.NewSynthetic("synthetic", 2),
	}
	if cfg.ProviderBaseURL == "" {
		if cfg.ProviderName != "synthetic" {
			logger.Warn().Str("provider", cfg.ProviderName).Msg("api: no provider base url, falling back to synthetic generation")
		}
		return providers, "synthetic"
	}
	client, err := provider.NewHTTPClient(provider.Options{
		Name:       cfg.ProviderName,
		BaseURL:    cfg.ProviderBaseURL,
		APIKey:     cfg.ProviderAPIKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure provider client")
	}
	providers[client.Name()] = client
	return providers, client.Name()
}

func newFilesystemStore(cfg *infra.Config, logger infra.Logger) domain.ResultStore {
	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := resultstore.NewFilesystem(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure result storage")
	}
	return store
}

func countryLookup(cfg *infra.Config, logger infra.Logger) middleware.CountryLookup {
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
		return nil
	}
	if resolver == nil {
		return nil
	}
	return resolver.CountryCode
}
