// Package server exposes the HTTP API: model inspection, prediction,
// geolocated analysis, and field/spot record keeping.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cropsight/cropsight/internal/config"
	"github.com/cropsight/cropsight/internal/loader"
	"github.com/cropsight/cropsight/internal/store"
)

// schemaVersion tags analysis responses and persisted results.
const schemaVersion = "1.0"

// Server wires the model cache and the record store into HTTP handlers.
type Server struct {
	cfg   config.Config
	log   logrus.FieldLogger
	store *store.Store
	cache *loader.Cache
}

// New creates a Server.
func New(cfg config.Config, log logrus.FieldLogger, st *store.Store, cache *loader.Cache) *Server {
	return &Server{cfg: cfg, log: log, store: st, cache: cache}
}

// Routes builds the gin engine with all API routes registered.
func (s *Server) Routes() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/models", s.handleListModels)
		api.POST("/predict", s.handlePredict)
		api.POST("/analyze", s.handleAnalyze)

		api.POST("/fields", s.handleCreateField)
		api.GET("/fields", s.handleListFields)
		api.GET("/fields/:id", s.handleGetField)
		api.PUT("/fields/:id", s.handleUpdateField)
		api.DELETE("/fields/:id", s.handleDeleteField)
		api.GET("/fields/:id/metrics", s.handleFieldMetrics)
		api.GET("/fields/:id/analysis-summary", s.handleAnalysisSummary)

		api.POST("/fields/:id/spots", s.handleCreateSpot)
		api.GET("/fields/:id/spots", s.handleListSpots)
		api.GET("/spots/:id", s.handleGetSpot)
		api.DELETE("/spots/:id", s.handleDeleteSpot)
	}

	return r
}

// errorResponse writes a JSON error body.
func errorResponse(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// handleHealth reports service liveness plus model availability.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"available_models": s.cache.Available(),
		"loaded_models":    s.cache.Loaded(),
	})
}
