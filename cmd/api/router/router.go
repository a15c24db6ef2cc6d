package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ai-chat/cmd/api/handlers"
	"ai-chat/cmd/api/middleware"
	"ai-chat/cmd/api/services"
	_ "ai-chat/docs"
)

type Deps struct {
	Chats       *services.ChatService
	Completions *services.CompletionService
	// Limiter 가 nil 이면 /chat 에 속도 제한을 두지 않는다.
	Limiter *middleware.IPRateLimiter
	Storage string
	Ping    handlers.Pinger
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(openCORS())
	r.Use(middleware.RequestTrace())
	r.Use(middleware.RequestLoggingMiddleware())

	r.GET("/health", handlers.HealthHandler(d.Storage, d.Ping))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/chats/new", handlers.CreateChatHandler(d.Chats))
	r.GET("/chats", handlers.ListChatsHandler(d.Chats))
	r.DELETE("/chats/:chatId", handlers.DeleteChatHandler(d.Chats))

	r.POST("/messages/new", handlers.CreateMessageHandler(d.Chats))
	r.GET("/messages/:chatId", handlers.ListMessagesHandler(d.Chats))

	if d.Completions != nil {
		r.POST("/chat", middleware.RateLimit(d.Limiter), handlers.CompletionHandler(d.Completions))
	}
	return r
}

// openCORS allows every origin. Preflight requests end here.
func openCORS() gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id", "X-Span-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Span-Id"},
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
