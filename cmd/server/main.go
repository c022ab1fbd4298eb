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

	"dramaforge/internal/clients"
	"dramaforge/internal/config"
	"dramaforge/internal/delivery/websocket"
	"dramaforge/internal/generator"
	"dramaforge/internal/handler"
	"dramaforge/internal/messaging"
	"dramaforge/internal/service"
	"dramaforge/pkg/migration"
	"dramaforge/shared/database"
	"dramaforge/shared/interfaces"
	sharedLogger "dramaforge/shared/logger"
	sharedMiddleware "dramaforge/shared/middleware"
	"dramaforge/shared/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Development: cfg.Env == "development",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameplay := gameplayConfig(cfg)
	if err := gameplay.Validate(); err != nil {
		return fmt.Errorf("invalid gameplay configuration: %w", err)
	}

	catalog := &models.Catalog{}
	if cfg.CatalogPath != "" {
		loaded, err := config.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		catalog = loaded
		logger.Info("Catalog loaded",
			zap.Int("dramas", len(catalog.Dramas)),
			zap.Int("assets", len(catalog.Assets)),
			zap.Int("scripts", len(catalog.Scripts)),
		)
	}

	// --- Хранилище ---
	var (
		dramaRepo interfaces.DramaRepository
		assetRepo interfaces.AssetRepository
	)
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := setupPostgres(appCtx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		migrator := migration.NewMigrator(migration.Config{
			FS:   database.MigrationsFS,
			Path: database.MigrationsPath,
		}, pool, zerolog.New(os.Stdout).With().Timestamp().Logger())
		if err := migrator.Up(appCtx); err != nil {
			return err
		}

		pgDramas := database.NewPgDramaRepository(pool, logger)
		assetRepo = database.NewPgAssetRepository(pool, logger)
		dramaRepo = pgDramas
		if cfg.SeedCatalog {
			if err := seedPostgres(appCtx, catalog, pgDramas, assetRepo); err != nil {
				return err
			}
		}
	default:
		dramaRepo = database.NewMemoryDramaRepository(catalog.Dramas)
		assetRepo = database.NewMemoryAssetRepository(catalog.Assets, logger)
	}

	var snapshots interfaces.SnapshotRepository
	if cfg.RedisAddr != "" {
		redisClient, err := setupRedis(appCtx, cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		snapshots = database.NewRedisSnapshotRepository(redisClient, logger)
	} else {
		snapshots = database.NewMemorySnapshotRepository()
	}

	// --- Внешние сервисы ---
	var frameGenerator interfaces.FrameGenerator
	if cfg.GeneratorURL != "" {
		frameGenerator = clients.NewHTTPFrameGenerator(cfg.GeneratorURL, cfg.GeneratorAPIToken, cfg.GeneratorTimeout, logger)
	} else {
		frameGenerator = generator.NewCatalogGenerator(catalog.Scripts, cfg.GeneratorSeed, logger)
	}
	var limiter *rate.Limiter
	if cfg.GenerationRate > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.GenerationRate), cfg.GenerationBurst)
	}

	var settler interfaces.Settler = messaging.NewLocalSettler(cfg.SettlementSeed)
	if cfg.RabbitMQURL != "" {
		mqConn, err := connectRabbitMQ(appCtx, cfg.RabbitMQURL, logger)
		if err != nil {
			return err
		}
		defer mqConn.Close()
		amqpSettler, err := messaging.NewAMQPSettler(mqConn, cfg.SettlementQueue, cfg.SettlementSeed, logger)
		if err != nil {
			return err
		}
		defer amqpSettler.Close()
		settler = amqpSettler
	}

	wsManager := websocket.NewWebSocketManager(cfg.GetAllowedOrigins(), logger)
	wsManager.Start(appCtx)

	reconciler := service.NewReconciler(settler, wsManager, service.ReconcilerConfig{
		Timeout:     cfg.SettlementTimeout,
		MaxAttempts: cfg.ReconcileMaxAttempts,
	}, logger)
	go reconciler.Run(appCtx, cfg.ReconcileInterval)

	registry := service.NewAssetRegistry(assetRepo, logger)
	sessions := service.NewSessionManager(gameplay, service.SessionDeps{
		Dramas:     dramaRepo,
		Registry:   registry,
		Candidates: service.NewCandidateService(frameGenerator, gameplay, limiter, logger),
		Identity:   service.ContextIdentity{},
		Reconciler: reconciler,
		Notifier:   wsManager,
		Logger:     logger,
	}, snapshots, cfg.SessionIdle, cfg.SnapshotTTL, logger)

	sessionHandler := handler.NewSessionHandler(sessions, registry, dramaRepo, reconciler, wsManager, logger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(sharedMiddleware.ZapLoggingMiddlewareForGin(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(sharedMiddleware.ViewerIdentity())

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Len()})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	sessionHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GeneratorTimeout + 15*time.Second, // генерация кадров дольше обычного запроса
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-appCtx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	sessions.CloseAll()
	reconciler.Wait()
	return nil
}

func gameplayConfig(cfg *config.Config) service.GameplayConfig {
	g := cfg.Gameplay
	return service.GameplayConfig{
		CandidatesPerGeneration: g.CandidatesPerGeneration,
		EditablePeriod:          g.EditablePeriod,
		EditableSeed:            cfg.GeneratorSeed,
		DailyFreeRefreshes:      g.DailyFreeRefreshes,
		RefreshCost:             g.RefreshCost,
		CustomFrameCost:         g.CustomFrameCost,
		ConfirmationReward:      g.ConfirmationReward,
		RewardFinalFrame:        g.RewardFinalFrame,
		TargetFrameCount:        g.TargetFrameCount,
		MaxScriptLength:         g.MaxScriptLength,
		InitialBalance:          g.InitialBalance,
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", sharedMiddleware.ViewerIDHeader, sharedMiddleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{sharedMiddleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

// seedPostgres загружает каталог в пустую или существующую базу. Повторный запуск ничего не дублирует.
func seedPostgres(ctx context.Context, catalog *models.Catalog, dramas dramaUpserter, assets interfaces.AssetRepository) error {
	for _, d := range catalog.Dramas {
		if err := dramas.Upsert(ctx, d); err != nil {
			return fmt.Errorf("seed drama %s: %w", d.ID, err)
		}
	}
	for _, a := range catalog.Assets {
		if _, err := assets.RegisterIfAbsent(ctx, a); err != nil {
			return fmt.Errorf("seed asset %s: %w", a.AssetID, err)
		}
	}
	zap.L().Info("Catalog seeded", zap.Int("dramas", len(catalog.Dramas)), zap.Int("assets", len(catalog.Assets)))
	return nil
}

type dramaUpserter interface {
	Upsert(ctx context.Context, drama models.Drama) error
}
