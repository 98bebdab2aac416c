package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rank-service/internal/config"
	"rank-service/internal/database"
	"rank-service/internal/event"
	"rank-service/internal/handlers"
	"rank-service/internal/platform"
	"rank-service/internal/quiz"
	"rank-service/internal/repository"
	"rank-service/internal/service"
	"rank-service/internal/tier"
	"rank-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/joho/godotenv"
)

func setupLogging(logDir string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		logFile, err := setupLogging(logDir)
		if err != nil {
			log.Fatalf("Failed to set up logging: %v", err)
		}
		defer logFile.Close()
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := database.InitMongo(cfg.MongoDB); err != nil {
		log.Fatalf("Fatal error connecting to MongoDB: %v", err)
	}
	redisClient := database.InitRedis(cfg.Redis)

	platformClient := platform.NewClient(cfg.Platform, redisClient)

	table, err := tier.LoadTable(cfg.Platform.TierTablePath)
	if err != nil {
		log.Fatalf("Failed to load tier table: %v", err)
	}
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := table.EnsureRoleIDs(startupCtx, cfg.Platform.GuildID, platformClient); err != nil {
		log.Fatalf("Failed to resolve tier role IDs: %v", err)
	}
	cancel()

	bank, err := quiz.LoadBank(cfg.Quiz.PoolPath, cfg.Quiz.SessionSize)
	if err != nil {
		log.Fatalf("Failed to load question pool: %v", err)
	}

	// Repositories and indexes
	memberRepo := repository.NewMemberRepository(database.MongoDatabase)
	idxCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := memberRepo.CreateIndexes(idxCtx); err != nil {
		log.Printf("Warning: Failed to create database indexes: %v", err)
	}
	cancel()

	eventPublisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
	}

	reconciler := tier.NewReconciler(table, memberRepo, platformClient, cfg.Platform.TrialRoleID)

	eventConsumer, err := event.NewEventConsumer(cfg.RabbitMQ.URI, cfg.RabbitMQ.QueueName, reconciler)
	if err != nil {
		log.Printf("Warning: Failed to initialize event consumer: %v", err)
	} else {
		if err := eventConsumer.Start(); err != nil {
			log.Printf("Warning: Failed to start event consumer: %v", err)
			eventConsumer.Close()
			eventConsumer = nil
		} else {
			log.Println("Successfully started event consumer")
		}
	}

	sessions := quiz.NewSessionStore(cfg.Quiz.SessionLifetime)
	sessions.StartSweeper(time.Minute)

	gate := quiz.NewGate(memberRepo, cfg.Quiz.MinimumTenure, cfg.Quiz.FailureCooldown, cfg.Quiz.PassThreshold)

	promotionService := service.NewPromotionService(
		gate,
		sessions,
		bank,
		memberRepo,
		platformClient,
		platformClient,
		eventPublisher,
		service.PromotionConfig{
			TrialRoleID:    cfg.Platform.TrialRoleID,
			ModRoleID:      cfg.Platform.ModRoleID,
			DefaultGuildID: cfg.Platform.GuildID,
			AuditChannelID: cfg.Platform.QuizLogChannelID,
			SessionSize:    cfg.Quiz.SessionSize,
			PassThreshold:  cfg.Quiz.PassThreshold,
		},
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"*"},
	}))

	rankHandler := handlers.NewRankHandler(promotionService)
	rankHandler.RegisterRoutes(app)

	regCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := platformClient.RegisterCommands(regCtx, cfg.Platform.ApplicationID, cfg.Platform.GuildID); err != nil {
		log.Printf("Warning: Failed to register slash commands: %v", err)
	}
	cancel()

	serviceRegistry, err := discovery.NewServiceRegistry(cfg)
	if err != nil {
		log.Printf("Warning: Service discovery init failed: %v", err)
		serviceRegistry = nil
	} else if err := serviceRegistry.Register(); err != nil {
		log.Printf("Warning: Service discovery registration failed: %v", err)
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	sessions.Close()

	if eventConsumer != nil {
		if err := eventConsumer.Close(); err != nil {
			log.Printf("Error closing event consumer: %v", err)
		}
	}
	if eventPublisher != nil {
		if err := eventPublisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}

	database.DisconnectMongo()

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(); err != nil {
			log.Printf("Error deregistering from service discovery: %v", err)
		}
	}

	<-doneChan
	log.Println("Server shutdown complete")
}
