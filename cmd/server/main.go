package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fadilmartias/job-matcher/internal/config"
	"github.com/fadilmartias/job-matcher/internal/domain/fiber/handler"
	"github.com/fadilmartias/job-matcher/internal/importer"
	applog "github.com/fadilmartias/job-matcher/internal/log"
	"github.com/fadilmartias/job-matcher/internal/middleware"
	"github.com/fadilmartias/job-matcher/internal/model"
	"github.com/fadilmartias/job-matcher/internal/repository"
	"github.com/fadilmartias/job-matcher/internal/service"
	"github.com/fadilmartias/job-matcher/internal/store"
	"github.com/fadilmartias/job-matcher/internal/usecase"
	"github.com/fadilmartias/job-matcher/internal/worker"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Could not load .env file")
	}

	appConfig := config.LoadAppConfig()

	zapLogger := applog.InitLog(appConfig.LogLevel, appConfig.IsProduction())
	defer func() { _ = zapLogger.Sync() }()
	undo := zap.ReplaceGlobals(zapLogger)
	defer undo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{
		AppName:   appConfig.Name,
		BodyLimit: 10 * 1024 * 1024,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			// Status code defaults to 500
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}

			return ctx.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // 1
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.IsProduction()
		},
	}))
	app.Use(healthcheck.New())

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.RateLimiter(120, 1*time.Minute))

	analyzerConfig := config.LoadAnalyzerConfig()

	// Gemini also provides embeddings for the archive, so it is created
	// whenever a key is present.
	gemini, geminiErr := service.NewGeminiService(ctx)

	var analyzer service.Analyzer
	switch analyzerConfig.Provider {
	case config.ProviderOpenRouter:
		openRouter, err := service.NewOpenRouterService()
		if err != nil {
			zap.S().Fatalw("failed to init openrouter", "error", err)
		}
		analyzer = openRouter
	case config.ProviderGemini:
		if geminiErr != nil {
			zap.S().Fatalw("failed to init gemini", "error", geminiErr)
		}
		analyzer = gemini
	default:
		zap.S().Fatalw("unknown analyzer provider", "provider", analyzerConfig.Provider)
	}

	queue := worker.NewQueue(analyzerConfig.Cooldown)
	uc := usecase.NewMatchUsecase(
		store.NewResumeStore(),
		store.NewJobStore(),
		queue,
		analyzer,
		importer.NewLinkedInParser(),
	)

	if dbConfig := config.LoadDBConfig(); dbConfig.Enabled() {
		db := ConnectDB(dbConfig, appConfig)
		var embedder usecase.Embedder
		if geminiErr == nil {
			embedder = gemini
		}
		uc.WithArchive(usecase.NewArchive(repository.NewMatchRepository(db), embedder))
		zap.S().Infow("match archive enabled", "similarity_search", embedder != nil)
	}

	handler.NewMatchHandler(uc).RegisterRoutes(app)

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		queue.Run(ctx)
	}()

	// Monitor goroutine count
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				zap.S().Debugw("runtime stats", "goroutines", runtime.NumGoroutine(), "pending_tasks", queue.Pending())
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zap.S().Errorw("server shutdown failed", "error", err)
		}
	}()

	zap.S().Infow("server running", "port", appConfig.Port, "provider", analyzerConfig.Provider, "cooldown", analyzerConfig.Cooldown)
	if err := app.Listen(appConfig.Port); err != nil {
		zap.S().Fatalw("server stopped", "error", err)
	}

	stop()
	<-queueDone
	zap.S().Info("server stopped")
}

func ConnectDB(dbConfig *config.DBConfig, appConfig *config.AppConfig) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{})
	if err != nil {
		zap.S().Fatalw("could not connect to database", "error", err)
	}
	pgDB, err := db.DB()
	if err != nil {
		zap.S().Fatalw("could not get database instance", "error", err)
	}
	if !appConfig.IsProduction() {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(100)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		zap.S().Fatalw("could not enable pgvector", "error", err)
	}
	if err := db.AutoMigrate(&model.MatchRecord{}); err != nil {
		zap.S().Fatalw("migration failed", "error", err)
	}
	return db
}
