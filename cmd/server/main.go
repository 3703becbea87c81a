// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dealhawk/dealhawk-backend/internal/clickstats"
	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/database"
	"github.com/dealhawk/dealhawk-backend/internal/ingest"
	"github.com/dealhawk/dealhawk-backend/internal/jobs"
	"github.com/dealhawk/dealhawk-backend/internal/marketplace"
	"github.com/dealhawk/dealhawk-backend/internal/refresh"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
	"github.com/dealhawk/dealhawk-backend/internal/router"
	"github.com/dealhawk/dealhawk-backend/internal/scraper"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	repo := repository.NewGormRepository(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	clicks := clickstats.New(rdb, repo)

	// Register marketplace clients
	registry := marketplace.NewRegistry()
	scrape := scraper.New(cfg.Scraper)

	ebayClient := marketplace.NewEbayClient(cfg.Ebay.BaseURL, cfg.Ebay.APIToken, repo)
	registry.Register(ebayClient, marketplace.Info{
		Volatile:      true,
		APIIntegrated: cfg.Ebay.APIToken != "",
	})

	orchestrator := refresh.NewOrchestrator(repo, clicks, registry, scrape, cfg)

	matcher, err := ingest.NewMatcher(cfg.Matcher)
	if err != nil {
		log.Fatal("Failed to initialize matcher:", err)
	}
	pipeline := ingest.NewPipeline(repo, registry, matcher, cfg)

	// Initialize router
	r := router.Initialize(cfg, repo, clicks, orchestrator, pipeline)

	// Start background jobs
	jobCtx, stopJobs := context.WithCancel(context.Background())
	runner := jobs.NewRunner(orchestrator, pipeline, repo, registry, cfg)
	go runner.Start(jobCtx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop background loops before closing shared resources
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("Error closing redis connection: %v", err)
	}

	log.Println("Server exited")
}
