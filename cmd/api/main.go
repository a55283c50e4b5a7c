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

	"github.com/alignlens/backend/internal/alignment"
	alignneo4j "github.com/alignlens/backend/internal/alignment/neo4j"
	"github.com/alignlens/backend/internal/api/handlers"
	cacheredis "github.com/alignlens/backend/internal/cache/redis"
	"github.com/alignlens/backend/internal/compare"
	"github.com/alignlens/backend/internal/embedding"
	"github.com/alignlens/backend/internal/metrics"
	"github.com/alignlens/backend/internal/middleware/ratelimit"
	"github.com/alignlens/backend/internal/ontology"
	"github.com/alignlens/backend/internal/pending"
	"github.com/alignlens/backend/internal/similarity"
	"github.com/alignlens/backend/internal/store/sqlite"
	"github.com/alignlens/backend/pkg/config"
	appLogger "github.com/alignlens/backend/pkg/logger"
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

	appLogger.Info("Starting alignlens API server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	err = store.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var registry *ontology.Registry
	if cfg.Ontology.Path != "" {
		registry, err = ontology.LoadFile(cfg.Ontology.Path)
		if err != nil {
			appLogger.Fatal("Failed to load ontology", zap.Error(err))
		}
		appLogger.Info("Ontology loaded",
			zap.String("path", cfg.Ontology.Path),
			zap.Int("attributes", registry.Len()),
		)
	} else {
		registry = ontology.Default()
	}

	var edgeStore alignment.EdgeStore = store
	if cfg.Alignment.Backend == "neo4j" {
		neoStore, err := alignneo4j.NewStore(
			cfg.Neo4j.URI,
			cfg.Neo4j.Username,
			cfg.Neo4j.Password,
			cfg.Neo4j.Database,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Neo4j alignment store", zap.Error(err))
		}
		defer neoStore.Close(context.Background())
		edgeStore = neoStore
	}
	graph := alignment.NewGraph(edgeStore)

	var vectorCache embedding.VectorCache
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		vectorCache = redisClient
	}

	var embedder similarity.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.NewClient(
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			cfg.Embedding.TimeoutSec,
			cfg.Embedding.MaxAttempts,
			time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour,
			vectorCache,
		)
	} else {
		appLogger.Warn("No embedding API key configured; free-text comparison uses token overlap only")
	}

	scorer := similarity.NewComparator(embedder)

	comparator := compare.NewComparator(graph, store, store, registry, scorer, compare.Config{
		DefaultThreshold: cfg.Engine.MisalignmentThreshold,
		MaxConcurrent:    cfg.Engine.MaxConcurrentEmbeds,
	})

	resolver := pending.NewResolver(graph, store, store, registry, scorer, pending.Config{
		DefaultThreshold:       cfg.Engine.MisalignmentThreshold,
		DefaultFreshnessWindow: time.Duration(cfg.Engine.FreshnessWindowHours) * time.Hour,
		BasePriority:           cfg.Engine.BasePriority,
		MissingBonus:           cfg.Engine.MissingBonus,
		MisalignedBonus:        cfg.Engine.MisalignedBonus,
		StaleBonus:             cfg.Engine.StaleBonus,
		ImportantBonus:         cfg.Engine.ImportantBonus,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(limiter.Middleware())

	peopleHandler := handlers.NewPeopleHandler(store)
	tasksHandler := handlers.NewTasksHandler(store)
	answersHandler := handlers.NewAnswersHandler(store, registry)
	alignmentHandler := handlers.NewAlignmentHandler(graph)
	insightsHandler := handlers.NewInsightsHandler(comparator, resolver)

	api := app.Group("/api/v1")

	api.Post("/people", peopleHandler.CreatePerson)
	api.Get("/people", peopleHandler.ListPeople)
	api.Get("/people/:id", peopleHandler.GetPerson)

	api.Post("/tasks", tasksHandler.CreateTask)
	api.Get("/tasks/:id", tasksHandler.GetTask)
	api.Delete("/tasks/:id", tasksHandler.DeactivateTask)

	api.Put("/people/:id/alignments/:target", alignmentHandler.AddAlignment)
	api.Delete("/people/:id/alignments/:target", alignmentHandler.RemoveAlignment)
	api.Get("/people/:id/alignments", alignmentHandler.ListAlignments)

	api.Post("/answers", answersHandler.SubmitAnswer)
	api.Delete("/answers/refusals", answersHandler.ResetRefusal)
	api.Get("/entities/:id/answers", answersHandler.ListAnswersForEntity)

	api.Get("/people/:id/misalignments", insightsHandler.GetMisalignments)
	api.Get("/people/:id/pending", insightsHandler.GetPending)

	api.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
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
