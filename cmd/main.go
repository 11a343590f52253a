// Package main is the entry point for the Aegis self-healing controller.
// It initializes the Docker client, healing history database, and HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aegis/core/models"
	"aegis/core/repository"
	"aegis/core/service"
	"aegis/database"
	"aegis/handler"
	"aegis/utils/config"
	"aegis/utils/docker"
	"aegis/utils/system"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Aegis self-healing controller...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize healing history database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Initialize Docker client
	dockerClient, err := docker.NewClient(cfg.Docker.Host)
	if err != nil {
		log.Fatalf("Failed to initialize Docker client: %v", err)
	}
	defer dockerClient.Close()

	// Test Docker connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dockerClient.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to Docker daemon: %v", err)
	}
	log.Println("Docker client initialized successfully")

	// Wire the capability boundary and services
	controller := system.NewController(dockerClient, cfg.Healing.BackupDir, cfg.Healing.LogDir)
	historyRepo := repository.NewHealingActionRepository(database.GetDB())

	endpoints := buildEndpoints(cfg.Probes.Endpoints)
	healthService := service.NewHealthService(controller, service.ProbeConfig{
		Containers:       cfg.Probes.Containers,
		Services:         cfg.Probes.Services,
		Endpoints:        endpoints,
		CriticalFiles:    cfg.Probes.CriticalFiles,
		CPUThreshold:     cfg.Probes.CPUThreshold,
		DiskCriticalPct:  cfg.Probes.DiskCriticalPct,
		DiskDegradedPct:  cfg.Probes.DiskDegradedPct,
		MemoryLowWater:   uint64(cfg.Probes.MemoryLowWaterMB) * 1024 * 1024,
		ProbeTimeout:     cfg.Probes.Timeout,
		ProbeConcurrency: cfg.Probes.Concurrency,
	})
	healingService := service.NewHealingService(controller, historyRepo, service.HealingConfig{
		Endpoints:     endpoints,
		CriticalFiles: cfg.Probes.CriticalFiles,
		ActionTimeout: cfg.Healing.ActionTimeout,
	})

	// Start background monitor if enabled
	if cfg.Monitor.Enabled {
		go startMonitor(healthService, healingService, historyRepo, &cfg.Monitor)
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
		log.Println("Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	}

	// Create Gin engine
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Server.Mode != "release" {
		engine.Use(gin.Logger())
	}

	// Add CORS middleware
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	aegis := engine.Group("/aegis")
	{
		// Liveness endpoint
		aegis.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "healthy",
				"time":   time.Now(),
			})
		})

		healingHandler := handler.NewHealingHandler(healthService, healingService)
		aegis.POST("/healing", healingHandler.Heal)
		aegis.GET("/healing", healingHandler.Query)

		watchHandler := handler.NewWatchHandler(healthService)
		aegis.GET("/healing/watch", watchHandler.Watch)
	}

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Aegis server listening on %s", addr)
		log.Println("API available at: /aegis")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// buildEndpoints converts configured endpoints into the service table.
func buildEndpoints(configured map[string]config.EndpointConfig) map[string]service.ServiceEndpoint {
	endpoints := make(map[string]service.ServiceEndpoint, len(configured))
	for name, ep := range configured {
		endpoints[name] = service.ServiceEndpoint{
			Name:      name,
			Host:      ep.Host,
			Port:      ep.Port,
			HTTPPath:  ep.Path,
			Container: ep.Container,
		}
	}
	return endpoints
}

// startMonitor runs the periodic health-check loop. When auto-heal is
// enabled, every round also executes remediation; each round finishes with
// a history retention sweep.
func startMonitor(healthService *service.HealthService, healingService *service.HealingService,
	historyRepo *repository.HealingActionRepository, cfg *config.MonitorConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Printf("Monitor started (interval: %v, auto_heal: %v)", cfg.Interval, cfg.AutoHeal)

	for {
		<-ticker.C

		ctx := context.Background()
		results := healthService.PerformHealthCheck(ctx)

		if cfg.AutoHeal {
			actions := healingService.ExecuteHealing(ctx, results)
			if len(actions) > 0 {
				summary := models.SummarizeActions(actions)
				log.Printf("Auto-heal round: %d completed, %d failed (success rate %.0f%%)",
					summary.Completed, summary.Failed, summary.SuccessRate())
			}
		}

		if cfg.HistoryMaxAge > 0 {
			if removed, err := historyRepo.DeleteOlderThan(cfg.HistoryMaxAge); err != nil {
				log.Printf("History retention sweep failed: %v", err)
			} else if removed > 0 {
				log.Printf("History retention sweep removed %d actions", removed)
			}
		}
	}
}
