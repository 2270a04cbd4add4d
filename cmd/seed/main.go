package main

import (
	"log"
	"log/slog"

	"channel-service/internal/config"
	"channel-service/internal/database"
	"channel-service/internal/models"
	"channel-service/internal/repositories/postgres"
	"channel-service/internal/services"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	slog.Info("Starting database seeding...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	channelRepo := postgres.NewChannelRepository(db)
	memberRepo := postgres.NewMemberRepository(db)
	tokenService := services.NewTokenService(cfg.Media.AppID, cfg.Media.Certificate, cfg.Media.TokenTTL)
	channelService := services.NewChannelService(channelRepo, memberRepo, tokenService)
	memberService := services.NewMemberService(channelRepo, memberRepo)

	slog.Info("Creating demo channel...")

	token, created, err := channelService.CreateChannel("lobby", "1000")
	if err != nil {
		log.Fatal("Failed to create demo channel: ", err)
	}
	if !created {
		slog.Warn("Demo channel already exists")
	} else {
		slog.Info("Created demo channel", "name", "lobby", "token", token)
	}

	demoMembers := []models.AddMemberRequest{
		{MemberID: "1001", Name: "Alice", ProfilePic: "https://i.pravatar.cc/150?u=1001"},
		{MemberID: "1002", Name: "Bob", ProfilePic: "https://i.pravatar.cc/150?u=1002"},
		{MemberID: "1003", Name: "Carol", ProfilePic: "https://i.pravatar.cc/150?u=1003"},
	}
	for _, req := range demoMembers {
		if _, err := memberService.AddMember("lobby", req); err != nil {
			slog.Warn("Member might already exist", "memberId", req.MemberID, "error", err)
		} else {
			slog.Info("Added demo member", "memberId", req.MemberID, "name", req.Name)
		}
	}

	slog.Info("Database seeding completed!")
}
