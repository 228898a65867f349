package routes

import (
	"net/http"
	"schoolchat/api/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func ChatApi(router *gin.Engine, chat *handlers.ChatHandlers, authMw gin.HandlerFunc) *gin.RouterGroup {
	chatEndpoints := router.Group("/api/v1/chat/")
	chatEndpoints.Use(authMw)
	{
		chatEndpoints.GET("conversations", chat.Conversations)
		chatEndpoints.GET("messages/:user_id", chat.Messages)
		chatEndpoints.GET("unread-count", chat.UnreadCount)
		chatEndpoints.POST("mark-read/:user_id", chat.MarkRead)
		chatEndpoints.GET("search-messages/:query", chat.SearchMessages)
		chatEndpoints.GET("search-users/:query", chat.SearchUsers)
		chatEndpoints.GET("online-users", chat.OnlineUsers)
	}
	return chatEndpoints
}

// RealtimeApi - websocket аутентифицируется сам, чтобы закрыть соединение с кодом 1008
func RealtimeApi(router *gin.Engine, socket *handlers.ChatSocket) {
	router.GET("/ws/chat", socket.Handle)
}

func ServiceApi(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
