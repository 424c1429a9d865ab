package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atlas-service/internal/config"
	"atlas-service/internal/dataset"
	"atlas-service/internal/export"
	"atlas-service/internal/handler"
	"atlas-service/internal/openrouter"
	"atlas-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Review Atlas Service...")

	// Load configuration
	configPath := "configs/config.yml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Load dataset. This is the only fatal failure: no meaningful UI can
	// be served without data.
	store, err := dataset.Open(cfg.Dataset.Path, logger)
	if err != nil {
		logger.Fatal("Failed to load dataset. Run the upstream projection step to produce it",
			zap.String("path", cfg.Dataset.Path),
			zap.Error(err))
	}
	defer store.Close()

	// Initialize assistant gateway. A missing key is not fatal: chat turns
	// surface a configuration notice instead.
	gateway := openrouter.NewClient(openrouter.Config{
		APIKey:  cfg.OpenRouter.APIKey,
		BaseURL: cfg.OpenRouter.BaseURL,
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.Title,
	}, logger)
	defer gateway.Close()

	if !gateway.Configured() {
		logger.Warn("OpenRouter API key not configured; chat will return a configuration notice")
	}

	// Initialize session context and export service
	explorer := service.NewExplorer(store, gateway, cfg.Dataset.SampleLimit, cfg.OpenRouter.ModelName, logger)
	exporter := export.NewService(logger)
	exportCfg := export.Config{
		SourcePath: cfg.Dataset.Path,
		StaticDir:  cfg.Export.StaticDir,
		Props:      export.DefaultProps(),
	}

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(explorer, exporter, exportCfg, cfg.OpenRouter.Models, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Review Atlas Service is running",
		zap.String("port", cfg.Server.Port),
		zap.String("model", cfg.OpenRouter.ModelName),
		zap.Int("dataset_rows", store.Len()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
