package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the source endpoints with the given router group.
//
// Endpoints:
//   - GET /resolve?path= - Resolve an asset to an HLS or MP4 source
//   - GET /cache - Resolution and readiness cache statistics
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	router.GET("/resolve", handler.Resolve)
	router.GET("/cache", handler.CacheStats)
}
