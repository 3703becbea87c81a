// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dealhawk/dealhawk-backend/internal/clickstats"
	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/handlers"
	"github.com/dealhawk/dealhawk-backend/internal/ingest"
	"github.com/dealhawk/dealhawk-backend/internal/middleware"
	"github.com/dealhawk/dealhawk-backend/internal/refresh"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
	"github.com/dealhawk/dealhawk-backend/internal/utils"
)

func Initialize(
	cfg *config.Config,
	repo repository.Repository,
	clicks clickstats.Stats,
	orchestrator *refresh.Orchestrator,
	pipeline *ingest.Pipeline,
) *gin.Engine {
	// Initialize handlers
	listingHandler := handlers.NewListingHandler(repo, clicks)
	adminHandler := handlers.NewAdminHandler(orchestrator, pipeline, repo)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.Default())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("/:id/deals", listingHandler.ProductDeals)
		}

		listings := v1.Group("/listings")
		{
			listings.POST("/:id/click", listingHandler.RecordClick)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/refresh", adminHandler.TriggerRefresh)
			admin.POST("/ingest", adminHandler.TriggerIngest)
			admin.POST("/sweep", adminHandler.TriggerSweep)
			admin.GET("/remediation", adminHandler.ListRemediationTasks)
		}
	}

	return r
}
