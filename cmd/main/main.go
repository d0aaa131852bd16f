package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/config"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/queue"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/scene"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/services"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/web"
)

func main() {
	// Load configuration from secrets/.env and the environment
	cfg, err := config.Load("secrets/.env")
	if err != nil {
		panic(fmt.Sprintf("Error loading configuration: %s", err))
	}

	// Create converter logger
	logger, err := log.NewLogger(cfg.LogDevelopment, cfg.LogDebug, "stderr", cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		logger.Fatal("Error resolving data directory:", err)
	}

	// Create a MongoDB client
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI()))
	if err != nil {
		logger.Fatal("Error creating MongoDB client:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}()

	// Create separate managers with the MongoDB client
	sceneManager := scene.NewSceneManager(client, logger.Named("scenes"))
	queueManager := queue.NewQueueListManager(client, logger.Named("queues"))

	// Initialize services
	converter := services.NewConverterService(afero.NewOsFs(), dataDir, sceneManager, queueManager, logger.Named("converter"))
	mqService, err := services.NewAMPQService(cfg.AMQPURI(), converter, logger.Named("amqp"))
	if err != nil {
		logger.Panic("Error initializing AMPQ service:", err)
	}
	defer mqService.Shutdown()

	// Initialize web server
	server := web.NewWebServer(converter, mqService, logger.Named("web"))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down...")
		if err := server.Shutdown(); err != nil {
			logger.Error("Error shutting down web server:", err)
		}
	}()

	logger.Infof("Starting server on %s, data directory %s", cfg.ListenAddr(), dataDir)

	// Start the web server
	if err := server.Run(cfg.ListenAddr()); err != nil {
		logger.Error("Web server stopped:", err)
	}
}
