package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the proxy endpoints.
//
// Endpoints:
//   - GET /stream?url= - Stream an origin file with Range support
//   - HEAD /stream?url= - Origin headers only
//   - OPTIONS /stream - CORS preflight
func RegisterRoutes(router gin.IRoutes, handler *Handler) {
	router.GET("/stream", handler.Stream)
	router.HEAD("/stream", handler.Stream)
	router.OPTIONS("/stream", handler.Preflight)
}
