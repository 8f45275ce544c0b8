package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/phenolab/termhub-backend/internal/db"
	"github.com/phenolab/termhub-backend/internal/handlers"
	"github.com/phenolab/termhub-backend/internal/logger"
	"github.com/phenolab/termhub-backend/internal/observability"
	"github.com/phenolab/termhub-backend/internal/platform/cache"
	"github.com/phenolab/termhub-backend/internal/repos"
	"github.com/phenolab/termhub-backend/internal/server"
	"github.com/phenolab/termhub-backend/internal/services"
	"github.com/phenolab/termhub-backend/internal/utils"
	"github.com/phenolab/termhub-backend/internal/vocab"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "termhub",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	defer func() { _ = shutdownOtel(ctx) }()

	// Application database
	dbService, err := db.NewDatabaseService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if utils.GetEnvAsBool("DB_AUTO_MIGRATE", true, log) {
		if err := dbService.AutoMigrateAll(); err != nil {
			log.Error("Database auto migration failed", "error", err)
			os.Exit(1)
		}
	}
	theDB := dbService.DB()

	// Vocabulary snapshot
	log.Info("Opening vocabulary snapshot...")
	store := vocab.NewStore(log)
	snapshots := services.NewSnapshotService(store, log)
	vocabPath := utils.GetEnv("VOCAB_PATH", "", log)
	if vocabPath == "" {
		log.Warn("VOCAB_PATH not set, starting without a vocabulary snapshot; queries return empty results")
	} else if err := snapshots.Load(ctx, vocabPath); err != nil {
		log.Warn("Vocabulary snapshot unavailable, queries return empty results", "path", vocabPath, "error", err)
	}

	// Repos
	log.Info("Setting up repos from main...")
	conceptSetRepo := repos.NewConceptSetRepo(theDB, log)
	generalConceptRepo := repos.NewGeneralConceptRepo(theDB, log)
	mappingRepo := repos.NewMappingRepo(theDB, log)
	optimizationRunRepo := repos.NewOptimizationRunRepo(theDB, log)

	// Optional query cache
	queryCache, err := cache.NewRedisCache(log)
	if err != nil {
		log.Warn("Running without query cache", "error", err)
		queryCache = nil
	}

	// Core engines
	engine := vocab.NewEngine(log)
	optimizer := vocab.NewOptimizer(log)
	builder := vocab.NewGraphBuilder(log)
	enricher := vocab.NewEnricher(log)

	// Services
	log.Info("Setting up services from main...")
	conceptService := services.NewConceptService(log, snapshots, engine, mappingRepo, queryCache)
	conceptSetService := services.NewConceptSetService(theDB, log, snapshots, optimizer, conceptSetRepo, optimizationRunRepo)
	hierarchyService := services.NewHierarchyService(log, snapshots, builder, queryCache)
	enrichmentService := services.NewEnrichmentService(theDB, log, snapshots, enricher)

	// Handlers
	log.Info("Setting up handlers from main...")
	vocabStatusHandler := handlers.NewVocabStatusHandler(log, snapshots)
	conceptHandler := handlers.NewConceptHandler(log, conceptService)
	conceptSetHandler := handlers.NewConceptSetHandler(log, conceptSetService)
	hierarchyHandler := handlers.NewHierarchyHandler(log, hierarchyService)
	mappingHandler := handlers.NewMappingHandler(log, enrichmentService, generalConceptRepo, mappingRepo)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if raw := utils.GetEnv("CORS_ORIGINS", "", log); raw != "" {
		origins = strings.Split(raw, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        "termhub",
		AllowOrigins:       origins,
		VocabStatusHandler: vocabStatusHandler,
		ConceptHandler:     conceptHandler,
		ConceptSetHandler:  conceptSetHandler,
		HierarchyHandler:   hierarchyHandler,
		MappingHandler:     mappingHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
