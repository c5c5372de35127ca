package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prolean/ProleanBack/internal/cache"
	"github.com/prolean/ProleanBack/internal/config"
	"github.com/prolean/ProleanBack/internal/database"
	"github.com/prolean/ProleanBack/internal/metrics"
	"github.com/prolean/ProleanBack/internal/middleware"
	"github.com/prolean/ProleanBack/internal/routes"
	notifyws "github.com/prolean/ProleanBack/internal/websocket"
	"github.com/prolean/ProleanBack/pkg/logger"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New(os.Stderr, logger.LevelInfo).Fatal("failed to load config", logger.Err(err))
	}
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel)).With(logger.String("app", cfg.Site.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, database.DefaultPoolOptions())
	if err != nil {
		log.Fatal("failed to connect to database", logger.Err(err))
	}
	defer pool.Close()

	// Catalog cache is optional; the catalog reads straight from Postgres without it.
	var catalogCache *cache.CatalogCache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("catalog cache disabled", logger.Err(err))
		} else {
			defer client.Close()
			catalogCache = cache.NewCatalogCache(client, cfg.CatalogCacheTTL)
		}
	}

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
	}

	hub := notifyws.NewHub(log)
	go hub.Run(ctx)

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{AppName: cfg.Site.Name})

	app.Use(middleware.RequestID())
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:request_id} ${status} ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	if err := routes.RegisterRoutes(app, routes.Deps{
		Config:  cfg,
		DB:      pool,
		Cache:   catalogCache,
		Hub:     hub,
		Log:     log,
		Metrics: m,
	}); err != nil {
		log.Fatal("failed to register routes", logger.Err(err))
	}

	// 4. Start Server
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", logger.Err(err))
		}
	}()

	log.Info("server starting", logger.String("port", cfg.Port), logger.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("server failed to start", logger.Err(err))
	}
}
