package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsehq/comms-gateway/internal/handler"
	"github.com/pulsehq/comms-gateway/internal/middleware"
	"github.com/pulsehq/comms-gateway/pkg/jwt"
)

// Setup configures all API routes
func Setup(router *gin.Engine, commsHandler *handler.CommsHandler, jwtManager *jwt.Manager) {
	api := router.Group("/api/v1", middleware.JWTAuth(jwtManager))

	conversations := api.Group("/conversations")
	conversations.GET("", commsHandler.ListConversations)
	conversations.GET("/:participantID/messages", commsHandler.ConversationMessages)
	conversations.POST("/:participantID/read", commsHandler.MarkConversationRead)

	threads := api.Group("/threads")
	threads.GET("", commsHandler.ListThreads)
	threads.GET("/:threadID/messages", commsHandler.ThreadMessages)
	threads.POST("/:threadID/read", commsHandler.MarkThreadRead)

	messages := api.Group("/messages")
	messages.POST("", commsHandler.SendMessage)
	messages.GET("/unread-count", commsHandler.UnreadCount)
}
