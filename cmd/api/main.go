package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/api/handlers"
	rediscache "github.com/xforce-bot/backend/internal/cache/redis"
	"github.com/xforce-bot/backend/internal/embedding"
	"github.com/xforce-bot/backend/internal/engine"
	"github.com/xforce-bot/backend/internal/metrics"
	"github.com/xforce-bot/backend/internal/middleware/ratelimit"
	"github.com/xforce-bot/backend/internal/reminder"
	"github.com/xforce-bot/backend/internal/storage/sqlite"
	"github.com/xforce-bot/backend/internal/vector/milvus"
	"github.com/xforce-bot/backend/pkg/config"
	appLogger "github.com/xforce-bot/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting attendance decision service")

	metrics.Init()

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		appLogger.Fatal("Invalid server timezone", zap.String("timezone", cfg.Server.Timezone), zap.Error(err))
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	var embeddingCache embedding.Cache
	if cfg.Redis.Enabled {
		redisClient, err := rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	embeddingClient := embedding.NewClient(
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dim,
		embeddingCache,
		time.Duration(cfg.Embedding.CacheTTLMin)*time.Minute,
	)

	decisionEngine := engine.New(
		sqliteClient,
		sqliteClient,
		embeddingClient,
		milvusClient,
		sqliteClient,
		engine.Config{
			SimilarityThreshold: cfg.Escalation.SimilarityThreshold,
			TopK:                cfg.Escalation.TopK,
		},
	)

	var reminderService *reminder.Service
	if cfg.Reminder.Enabled {
		reminderService = reminder.NewService(sqliteClient, sqliteClient, reminder.LogNotifier{}, cfg.Reminder.Schedule)
		if err := reminderService.Start(); err != nil {
			appLogger.Fatal("Failed to start reminder service", zap.Error(err))
		}
		defer reminderService.Stop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{
		Logger: appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
	app.Use(rateLimiter.Middleware())

	messageHandler := handlers.NewMessageHandler(decisionEngine, loc)
	attendanceHandler := handlers.NewAttendanceHandler(sqliteClient, loc)
	ticketHandler := handlers.NewTicketHandler(sqliteClient)
	employeeHandler := handlers.NewEmployeeHandler(sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/messages", messageHandler.HandleMessage)

	api.Put("/attendance/status", attendanceHandler.SetStatus)
	api.Get("/attendance/history", attendanceHandler.GetHistory)
	api.Get("/attendance/range", attendanceHandler.GetRange)

	api.Get("/tickets", ticketHandler.ListActive)
	api.Patch("/tickets/:number", ticketHandler.UpdateStatus)

	api.Post("/employees", employeeHandler.Upsert)
	api.Delete("/employees/:number", employeeHandler.Deactivate)

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
