package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-service/internal/adapters/kafka"
	"channel-service/internal/api/routes"
	"channel-service/internal/config"
	"channel-service/internal/database"
	"channel-service/internal/presence"
	"channel-service/internal/repositories/postgres"
	"channel-service/internal/services"
	"channel-service/internal/websocket"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Starting channel server")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Redis is optional; without it the hub runs single-instance and rate
	// limits are disabled.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = database.NewRedisConnection(cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	} else {
		logger.Warn("Redis disabled, running single-instance")
	}

	channelRepo := postgres.NewChannelRepository(db)
	memberRepo := postgres.NewMemberRepository(db)
	chatRepo := postgres.NewChatRepository(db)

	// A previous run may have crashed with members flagged active. The
	// in-memory presence state is empty on boot, so the flags are stale.
	if err := memberRepo.ClearAllActive(); err != nil {
		logger.Error("Failed to reset active flags", "error", err)
		os.Exit(1)
	}

	tokenService := services.NewTokenService(cfg.Media.AppID, cfg.Media.Certificate, cfg.Media.TokenTTL)
	channelService := services.NewChannelService(channelRepo, memberRepo, tokenService)
	memberService := services.NewMemberService(channelRepo, memberRepo)
	chatService := services.NewChatService(chatRepo)
	identityStore := services.NewIdentityStore(channelRepo, memberRepo)

	hub := websocket.NewHub(redisClient, logger)
	go hub.Run()

	registry := presence.NewRegistry()
	table := presence.NewTable()
	session := presence.NewManager(identityStore, registry, table, hub, logger)

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer producer.Close()
		session.SetAuditor(producer)
		logger.Info("Kafka audit trail enabled", "topic", cfg.Kafka.Topic)
	}

	monitor := presence.NewMonitor(
		registry,
		session,
		cfg.Presence.HeartbeatTimeout,
		cfg.Presence.SweepInterval,
		hub.CloseConn,
		logger,
	)
	monitor.Start()

	router := routes.NewRouter(hub, session, channelService, memberService, chatService, redisClient, logger)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	monitor.Stop()
	hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
