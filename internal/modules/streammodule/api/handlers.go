// Package api exposes the streaming proxy over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	gwerrors "github.com/mantonx/streamgate/internal/errors"
	"github.com/mantonx/streamgate/internal/modules/streammodule/core"
)

// Handler serves proxy requests.
type Handler struct {
	proxy  *core.Proxy
	logger hclog.Logger
}

// NewHandler creates a new API handler
func NewHandler(proxy *core.Proxy, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{proxy: proxy, logger: logger}
}

// Stream handles GET and HEAD /stream?url=<origin url>
// The client's Range header is forwarded unchanged; the origin response is
// streamed back as it arrives.
func (h *Handler) Stream(c *gin.Context) {
	err := h.proxy.Serve(c.Writer, c.Request, c.Query("url"))
	if err == nil {
		return
	}
	if !c.Writer.Written() {
		gwerrors.Respond(c, err, h.logger)
		return
	}
	// Headers are gone; the client sees a short body and re-requests a range.
	c.Abort()
}

// Preflight handles OPTIONS /stream
func (h *Handler) Preflight(c *gin.Context) {
	core.SetPreflightHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
}
