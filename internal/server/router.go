package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/phenolab/termhub-backend/internal/handlers"
)

type RouterConfig struct {
	ServiceName        string
	AllowOrigins       []string
	VocabStatusHandler *handlers.VocabStatusHandler
	ConceptHandler     *handlers.ConceptHandler
	ConceptSetHandler  *handlers.ConceptSetHandler
	HierarchyHandler   *handlers.HierarchyHandler
	MappingHandler     *handlers.MappingHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5174"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Vocabulary
		api.GET("/vocab/status", cfg.VocabStatusHandler.Status)

		// Concept graph queries
		api.GET("/concepts/:id/related", cfg.ConceptHandler.Related)
		api.GET("/concepts/:id/descendants", cfg.ConceptHandler.Descendants)
		api.GET("/concepts/:id/neighbors", cfg.ConceptHandler.HierarchyNeighbors)
		api.GET("/concepts/:id/synonyms", cfg.ConceptHandler.Synonyms)
		api.GET("/concepts/:id/recommendation-pool", cfg.ConceptHandler.RecommendationPool)
		api.GET("/concepts/:id/hierarchy", cfg.HierarchyHandler.Graph)

		// Concept sets
		api.POST("/concept-sets", cfg.ConceptSetHandler.Create)
		api.GET("/concept-sets", cfg.ConceptSetHandler.List)
		api.GET("/concept-sets/:id", cfg.ConceptSetHandler.Get)
		api.POST("/concept-sets/:id/optimize", cfg.ConceptSetHandler.Optimize)
		api.GET("/concept-sets/:id/runs", cfg.ConceptSetHandler.Runs)

		// General concepts and mappings
		api.GET("/general-concepts", cfg.MappingHandler.ListGeneralConcepts)
		api.POST("/general-concepts", cfg.MappingHandler.CreateGeneralConcept)
		api.GET("/general-concepts/:id/mappings", cfg.MappingHandler.ListMappings)
		api.POST("/general-concepts/:id/mappings", cfg.MappingHandler.CreateMapping)
		api.POST("/mappings/enrich", cfg.MappingHandler.Enrich)
	}

	return router
}
