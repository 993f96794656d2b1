// Package api provides the HTTP endpoints of the source module.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	gwerrors "github.com/mantonx/streamgate/internal/errors"
	"github.com/mantonx/streamgate/internal/services"
	"github.com/mantonx/streamgate/internal/types"
)

// Handler serves source resolution requests.
type Handler struct {
	sources services.SourceService
	logger  hclog.Logger
}

// NewHandler creates a new API handler
func NewHandler(sources services.SourceService, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{sources: sources, logger: logger}
}

// Resolve handles GET /api/sources/resolve?path=<asset path>
// It returns {"kind":"hls"|"mp4","url":...}.
func (h *Handler) Resolve(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		gwerrors.Validation("resolve", gwerrors.ErrInvalidAssetPath).
			WithDetail("parameter", "path").
			ToGinResponse(c, h.logger)
		return
	}

	src, err := h.sources.Resolve(c.Request.Context(), types.AssetPath(path))
	if err != nil {
		gwerrors.Respond(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, src)
}

// CacheStats handles GET /api/sources/cache
func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sources.Stats())
}
