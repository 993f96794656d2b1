package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/metrics"
	"github.com/mantonx/streamgate/internal/middleware"
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
)

const healthTimeout = 2 * time.Second

// SetupRouter configures and returns the main router
func SetupRouter(cfg *config.Config, modules *modulemanager.ModuleRegistry, rec *metrics.Recorder, log hclog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log), middleware.ErrorLogger(log))

	// The stream endpoint sets its own CORS headers, including on origin
	// errors; the JSON API uses the configured allow list.
	r.Use(apiCORS(cfg.Server.AllowedOrigins))

	setupHealthRoutes(r, modules)

	if cfg.Metrics.Enabled && rec != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(rec.Handler()))
	}

	modules.RegisterRoutes(r)
	return r
}

func apiCORS(allowed []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Range", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowed
	}
	handler := cors.New(corsConfig)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/stream" {
			c.Next()
			return
		}
		handler(c)
	}
}

func setupHealthRoutes(r *gin.Engine, modules *modulemanager.ModuleRegistry) {
	r.GET("/api/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"modules": modules.Health(ctx),
		})
	})
}
