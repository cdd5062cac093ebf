package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/api"
	"github.com/dtsarev/minichat/internal/auth"
	"github.com/dtsarev/minichat/internal/config"
	"github.com/dtsarev/minichat/internal/db"
	"github.com/dtsarev/minichat/internal/middleware"
	"github.com/dtsarev/minichat/internal/observ"
	"github.com/dtsarev/minichat/internal/relay"
	"github.com/dtsarev/minichat/internal/repository/postgres"
	"github.com/dtsarev/minichat/internal/service"
	"github.com/dtsarev/minichat/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	notifier, err := relay.NewRedisRelay(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer notifier.Close()

	// Repositories, assigned through their interfaces so a missing
	// method is a compile error here, not a runtime surprise.
	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	chatRepo := postgres.NewChatStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	identity := service.NewIdentityService(userRepo, logger)
	chats := service.NewChatService(chatRepo, userRepo, logger)
	messages := service.NewMessageService(messageRepo, userRepo, logger)
	guard := service.NewAccessGuard(chatRepo)

	hub := ws.NewHub(logger)
	go hub.Run(ctx, notifier.Subscribe(ctx))

	provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	authHandler := api.NewAuthHandler(provider, identity, cfg.JWTSecret, logger)
	userHandler := api.NewUserHandler(identity, logger)
	chatHandler := api.NewChatHandler(chats, notifier, logger)
	messageHandler := api.NewMessageHandler(messages, chats, guard, notifier, logger)
	wsHandler := api.NewWSHandler(hub, guard, notifier, cfg.JWTSecret, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.GET("/v1/auth/google/login", authHandler.Login)
	srv.GET("/v1/auth/google/callback", authHandler.Callback)

	// The socket authenticates itself via query token; everything else
	// under /v1 requires a Bearer token.
	srv.GET("/v1/ws", wsHandler.Serve)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users/me", userHandler.GetMe)
	v1.PUT("/users/me/nickname", userHandler.SetNickname)
	v1.GET("/users/search", userHandler.Search)

	v1.GET("/chats", chatHandler.List)
	v1.GET("/chats/search", chatHandler.Search)
	v1.POST("/chats/group", chatHandler.CreateGroup)
	v1.POST("/chats/private", chatHandler.CreatePrivate)
	v1.POST("/chats/:id/join", chatHandler.Join)

	v1.GET("/chats/:id", messageHandler.GetChat)
	v1.GET("/chats/:id/messages", messageHandler.List)
	v1.GET("/chats/:id/messages/new", messageHandler.ListNew)
	v1.POST("/chats/:id/messages", messageHandler.Send)

	logger.Info("starting minichat",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return srv.Run(":" + cfg.Port)
}
