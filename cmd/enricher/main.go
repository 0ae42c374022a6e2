package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/enricher/internal/auth"
	"github.com/octobees/leads-generator/enricher/internal/config"
	"github.com/octobees/leads-generator/enricher/internal/database"
	"github.com/octobees/leads-generator/enricher/internal/dedupe"
	"github.com/octobees/leads-generator/enricher/internal/enrich"
	"github.com/octobees/leads-generator/enricher/internal/extractor"
	"github.com/octobees/leads-generator/enricher/internal/fetcher"
	"github.com/octobees/leads-generator/enricher/internal/handler"
	"github.com/octobees/leads-generator/enricher/internal/logger"
	"github.com/octobees/leads-generator/enricher/internal/metrics"
	middlewarepkg "github.com/octobees/leads-generator/enricher/internal/middleware"
	"github.com/octobees/leads-generator/enricher/internal/repository"
	"github.com/octobees/leads-generator/enricher/internal/router"
	"github.com/octobees/leads-generator/enricher/internal/rules"
	"github.com/octobees/leads-generator/enricher/internal/service"
	"github.com/octobees/leads-generator/enricher/internal/validator"
)

const serviceName = "leads-enricher"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, serviceName)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ruleSet, err := rules.Load(cfg.RulesFile)
	if err != nil {
		lg.Fatal("failed to load rules", zap.String("path", cfg.RulesFile), zap.Error(err))
	}

	recorder := metrics.NewRecorder()

	f := fetcher.New(cfg.Fetch,
		fetcher.WithLogger(lg.Named("fetcher")),
		fetcher.WithObserver(recorder))
	v := validator.New(ruleSet,
		validator.WithDefaultRegion(cfg.DefaultRegion),
		validator.WithMXCheck(cfg.ValidateEmailMX))
	x := extractor.New(ruleSet, extractor.WithURLFilter(v.Accepts))

	dedup, err := dedupe.New(cfg.Dedupe,
		dedupe.WithLogger(lg.Named("dedupe")),
		dedupe.WithObserver(recorder))
	if err != nil {
		lg.Fatal("invalid dedupe config", zap.Error(err))
	}
	orchestrator, err := enrich.New(cfg.Enrich, f, x, v,
		enrich.WithLogger(lg.Named("enrich")),
		enrich.WithObserver(recorder),
		enrich.WithFallbackPaths(ruleSet.FallbackPaths))
	if err != nil {
		lg.Fatal("invalid enrich config", zap.Error(err))
	}

	var repo repository.BusinessesRepository
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := database.Connect(ctx, cfg.DatabaseURL,
			database.WithMaxConns(cfg.DBMaxConns),
			database.WithApplicationName(serviceName))
		if err != nil {
			cancel()
			lg.Fatal("failed to connect database", zap.Error(err))
		}
		defer pool.Close()

		businessesRepo := repository.NewPGXBusinessesRepository(pool)
		err = businessesRepo.EnsureSchema(ctx)
		cancel()
		if err != nil {
			lg.Fatal("failed to prepare schema", zap.Error(err))
		}
		repo = businessesRepo
	} else {
		lg.Info("DATABASE_URL not set, persistence disabled")
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	if !jwtManager.Enabled() {
		lg.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	leadsService := service.NewLeadsService(dedup, orchestrator, repo, lg.Named("leads"))
	authService := service.NewAuthService(cfg.APIClients, jwtManager)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(lg.Named("http")))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Leads:   handler.NewLeadsHandler(leadsService, handler.DefaultMaxBatch),
		Auth:    handler.NewAuthHandler(authService),
		Metrics: recorder.Handler(),
	})

	serverErr := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("port", cfg.Port))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		lg.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
		return
	}

	// In-flight batches may take a full fetch timeout per page.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
