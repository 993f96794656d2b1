package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the credential channel.
//
// Endpoints:
//   - GET /ws - Websocket pushing SET_API_KEY messages
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	router.GET("/ws", handler.Channel)
}
