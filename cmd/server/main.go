// backend-go/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/api"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/cache"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/config"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/contracts"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/credit"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/optimizer"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/rates"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/repository"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/service"
	"github.com/andresuchdata/mix-credit-guru/backend-go/internal/storage"
	"github.com/andresuchdata/mix-credit-guru/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.Setup(cfg.Log.Format, cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, &cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	taxCache, err := cache.NewTaxCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, tax lookups will not be cached")
		taxCache = cache.NewNoopTaxCache()
	}
	defer taxCache.Close()

	store, err := rates.NewBundledStore()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load bundled rate rules")
	}

	taxService := service.NewTaxService(repository.NewRuleRepository(db), taxCache, store)
	if cfg.Engine.HydrateOnStart {
		if _, err := taxService.Sync(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to hydrate rules from database, serving bundled rules")
		}
	}

	contractStore, err := loadContracts(cfg.Engine.ContractsFile)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("file", cfg.Engine.ContractsFile).Msg("Failed to load contracts")
	}

	quoteService, err := service.NewQuoteService(service.QuoteDeps{
		Store:           store,
		Credit:          credit.NewEngine(nil, cfg.Engine.CreditMemoSize).Compute,
		Contracts:       contractStore,
		Optimizer:       optimizer.New(cfg.Engine.OptimizerMemo),
		DefaultScenario: cfg.Engine.DefaultScenario,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build quote service")
	}

	services := &api.Services{
		TaxService:      taxService,
		QuoteService:    quoteService,
		PlanningService: service.NewPlanningService(nil, nil),
	}
	if cfg.Storage.Enabled {
		objects, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Object storage unavailable, snapshots disabled")
		} else {
			services.SnapshotService = service.NewSnapshotService(taxService, objects, cfg.Storage.SnapshotPrefix)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(services, cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func loadContracts(path string) (*contracts.Store, error) {
	if path == "" {
		return contracts.NewStore(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return contracts.LoadJSON(f)
}
