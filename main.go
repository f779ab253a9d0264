package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/alerts"
	"CryptoSignalEngine/internal/handlers"
	"CryptoSignalEngine/internal/metrics"
	"CryptoSignalEngine/internal/models"
	"CryptoSignalEngine/internal/operations/exchange"
	"CryptoSignalEngine/internal/repositories"
	"CryptoSignalEngine/internal/services/performance"
	"CryptoSignalEngine/internal/services/reconcile"
	"CryptoSignalEngine/internal/services/scoring"
	"CryptoSignalEngine/internal/services/selection"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg.LogLevel)

	// Setup database
	db, err := setupDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize repositories
	priceRepo := repositories.NewPriceRepository(db)
	signalRepo := repositories.NewSignalRepository(db)
	positionRepo := repositories.NewPositionRepository(db)

	// Initialize exchange client
	binanceClient := exchange.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Reconcile)

	// Initialize core services
	scorer := scoring.NewScorer(cfg.Scoring)
	selector := selection.NewSelector(cfg.Selection, handlers.NewStoredPerformance(positionRepo), nil, nil)
	reconciler := reconcile.NewReconciler(positionRepo, binanceClient, cfg.Reconcile)
	monitor := performance.NewMonitor(cfg.Monitor)
	sink := alerts.Fanout{alerts.LogSink{}, alerts.NewJSONSink(os.Stdout)}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start price recording
	priceHandler := handlers.NewPriceHandler(
		binanceClient, priceRepo, reconciler, cfg.Symbols,
		models.PriceTimeFrame5m, cfg.Scoring.Interval, cfg.Scoring.MinSamples,
	)
	if err := priceHandler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start price handler")
	}

	// Start scoring/selection loop
	signalHandler := handlers.NewSignalHandler(
		priceRepo, signalRepo, scorer, selector,
		cfg.Symbols, models.PriceTimeFrame5m, cfg.Scoring, cfg.Selection,
	)
	if err := signalHandler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start signal handler")
	}

	// Start reconciliation and monitoring loop
	syncHandler := handlers.NewSyncHandler(
		reconciler, positionRepo, signalRepo, monitor, sink,
		cfg.Reconcile, cfg.Monitor,
	)
	if err := syncHandler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start sync handler")
	}

	metricsServer := metrics.Serve(cfg.MetricsAddr)
	log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint up")

	// Handle shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info().Msg("shutdown complete")
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func setupDatabase(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
		// Needed so unique violations surface as gorm.ErrDuplicatedKey
		// and map onto models.ErrDuplicateOpenPosition.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate database schemas
	if err := db.AutoMigrate(&models.Price{}, &models.Signal{}, &models.Position{}); err != nil {
		return nil, err
	}

	return db, nil
}
