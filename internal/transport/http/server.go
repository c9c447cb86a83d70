package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"docuchat/internal/ai"
	appsvc "docuchat/internal/app"
	"docuchat/internal/bootstrap"
	"docuchat/internal/cache"
	"docuchat/internal/platform/rabbitmq"
	"docuchat/internal/repository"
	"docuchat/internal/transport/http/handler"
	"docuchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	docRepo := repository.NewDocumentRepository(app.MySQL)
	chatRepo := repository.NewChatRepository(app.MySQL)
	contentCache := cache.NewContentCache(
		app.Redis,
		time.Duration(app.Config.Redis.ContentTTLSeconds)*time.Second,
	)
	turnPublisher := rabbitmq.NewTurnPublisher(app.MQConn, app.Config.RabbitMQ.TurnPersistQueue)

	documentService := appsvc.NewDocumentService(
		docRepo,
		app.Objects,
		app.Extractor,
		contentCache,
		time.Duration(app.Config.Extract.TimeoutSeconds)*time.Second,
	)
	chatService := appsvc.NewChatService(
		docRepo,
		chatRepo,
		turnPublisher,
		contentCache,
		ai.NewOpenAICompatibleClient(time.Duration(app.Config.LLM.TimeoutSeconds)*time.Second),
		ai.ChatConfig{
			BaseURL:        app.Config.LLM.BaseURL,
			APIKey:         app.Config.LLM.APIKey,
			Model:          app.Config.LLM.Model,
			Temperature:    app.Config.LLM.Temperature,
			MaxReplyTokens: app.Config.LLM.MaxReplyTokens,
			MaxRetries:     app.Config.LLM.MaxRetries,
		},
		app.Config.LLM.MaxTurnMessages,
	)

	documentHandler := handler.NewDocumentHandler(documentService, app.Config.Extract.MaxUploadBytes)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	v1.POST("/documents", documentHandler.Upload)
	v1.GET("/documents", documentHandler.List)
	v1.GET("/documents/:id", documentHandler.Get)
	v1.DELETE("/documents/:id", documentHandler.Delete)

	v1.POST("/chat", chatHandler.Converse)
	v1.POST("/chat/save", chatHandler.SaveTurn)
	v1.GET("/chat", chatHandler.GetChat)

	return router
}
