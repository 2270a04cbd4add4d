package routes

import (
	"log/slog"
	"time"

	"channel-service/internal/api/handlers"
	"channel-service/internal/api/middleware"
	"channel-service/internal/presence"
	"channel-service/internal/services"
	"channel-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type Router struct {
	engine         *gin.Engine
	wsHandler      *handlers.WSHandler
	channelHandler *handlers.ChannelHandler
	memberHandler  *handlers.MemberHandler
	tokenHandler   *handlers.TokenHandler
	chatHandler    *handlers.ChatHandler
	rateLimitMW    *middleware.RateLimitMiddleware
}

func NewRouter(
	hub *websocket.Hub,
	session *presence.Manager,
	channelService *services.ChannelService,
	memberService *services.MemberService,
	chatService *services.ChatService,
	redisClient *redis.Client,
	logger *slog.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogApi())

	return &Router{
		engine:         engine,
		wsHandler:      handlers.NewWSHandler(hub, session, chatService, logger),
		channelHandler: handlers.NewChannelHandler(channelService, session),
		memberHandler:  handlers.NewMemberHandler(memberService),
		tokenHandler:   handlers.NewTokenHandler(channelService),
		chatHandler:    handlers.NewChatHandler(chatService),
		rateLimitMW:    middleware.NewRateLimitMiddleware(redisClient),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")

	api.GET("/ws", r.wsHandler.HandleWebSocket)

	api.GET("/token",
		r.rateLimitMW.RateLimitIP(30, time.Minute),
		r.tokenHandler.GetToken,
	)

	channels := api.Group("/channels")
	channels.Use(r.rateLimitMW.RateLimitIP(100, time.Minute))
	{
		channels.GET("", r.channelHandler.GetChannels)
		channels.POST("", r.channelHandler.CreateChannel)
		channels.GET("/:name", r.channelHandler.GetChannelByName)
		channels.PATCH("/:name/token", r.channelHandler.UpdateToken)
		channels.GET("/:name/active-count", r.channelHandler.GetActiveCount)
		channels.POST("/:name/members", r.memberHandler.AddMember)
		channels.DELETE("/:name/members/:memberId", r.memberHandler.RemoveMember)
		channels.GET("/:name/messages", r.chatHandler.GetChannelMessages)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
