package main

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"clinicore-server/internal/config"
	"clinicore-server/internal/logger"
	"clinicore-server/internal/models"
	"clinicore-server/internal/routes"
)

func main() {
	// Load environment variables; a missing .env is fine in deployed setups
	if err := godotenv.Load(); err != nil {
		logger.L.Warnf("No .env file loaded: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L.Fatalf("Error loading config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Environment)

	// Create a DatabaseConfig for models
	modelDbConfig := models.DatabaseConfig{
		DSN: cfg.Database.DSN,
	}

	// Initialize database connection
	db, err := models.InitDB(modelDbConfig)
	if err != nil {
		logger.L.Fatalf("Error connecting to database: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes - passing DB and config to let routes.go create the handlers
	routes.SetupRoutes(router, db, cfg)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.L.Infof("Server running on port %s", cfg.Port)
	if err := router.Run(serverAddr); err != nil {
		logger.L.Fatalf("Failed to start server: %v", err)
	}
}
