// Package sourcemodule resolves asset paths into playable sources. It probes
// the media origin for an HLS ladder once per asset and otherwise falls back
// to the MP4 original served through the streaming proxy.
package sourcemodule

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
	"github.com/mantonx/streamgate/internal/modules/sourcemodule/api"
	"github.com/mantonx/streamgate/internal/modules/sourcemodule/core"
	"github.com/mantonx/streamgate/internal/origin"
	"github.com/mantonx/streamgate/internal/services"
)

// Module represents the source resolution module.
type Module struct {
	resolver   *core.Resolver
	handler    *api.Handler
	originBase string
	logger     hclog.Logger
}

// NewModule creates an uninitialized source module.
func NewModule() *Module {
	return &Module{}
}

// ID returns the module identifier
func (m *Module) ID() string {
	return "sources"
}

// Name returns the human-readable module name
func (m *Module) Name() string {
	return "Source Resolution Module"
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return true
}

// ProvidedServices implements modulemanager.ServiceProvider
func (m *Module) ProvidedServices() []string {
	return []string{services.SourceServiceName}
}

// RequiredServices implements modulemanager.ServiceConsumer
func (m *Module) RequiredServices() []string {
	return []string{services.CredentialServiceName, services.StreamServiceName}
}

// Init builds the resolver and registers the source service.
func (m *Module) Init(ictx *modulemanager.InitContext) error {
	m.logger = ictx.Logger
	cfg := ictx.Config

	credentials, err := services.Get[services.CredentialService](ictx.Services, services.CredentialServiceName)
	if err != nil {
		return fmt.Errorf("credential service not available: %w", err)
	}
	stream, err := services.Get[services.StreamService](ictx.Services, services.StreamServiceName)
	if err != nil {
		return fmt.Errorf("stream service not available: %w", err)
	}

	client, err := origin.NewClient(origin.Options{
		BaseURL:               cfg.Origin.BaseURL,
		APIKeyHeader:          cfg.Origin.APIKeyHeader,
		Credentials:           credentials,
		ResponseHeaderTimeout: cfg.Proxy.ResponseHeaderTimeout,
		Logger:                m.logger.Named("origin"),
	})
	if err != nil {
		return err
	}
	m.originBase = client.BaseURL()

	m.resolver = core.NewResolver(core.ResolverOptions{
		Cache:            core.NewCache(),
		Origin:           client,
		Wrapper:          stream,
		ProbeTimeout:     cfg.Resolver.ProbeTimeout,
		DefaultExtension: cfg.Resolver.DefaultExtension,
		Metrics:          ictx.Metrics,
		Logger:           m.logger.Named("resolver"),
	})
	m.handler = api.NewHandler(m.resolver, m.logger.Named("api"))

	services.Register[services.SourceService](ictx.Services, services.SourceServiceName, m.resolver)

	m.logger.Info("source resolver ready", "origin", m.originBase, "probe_timeout", m.resolver.ProbeTimeout())
	return nil
}

// RegisterRoutes registers HTTP routes for the source module
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api.RegisterRoutes(router.Group("/api/sources"), m.handler)
}

// ReloadConfig applies a new probe timeout. Cached resolutions are keyed by
// origin URLs, so an origin change only takes effect after a restart.
func (m *Module) ReloadConfig(cfg *config.Config) error {
	m.resolver.SetProbeTimeout(cfg.Resolver.ProbeTimeout)
	if cfg.Origin.BaseURL != m.originBase {
		m.logger.Warn("origin base url changed; restart required to apply", "current", m.originBase, "configured", cfg.Origin.BaseURL)
	}
	return nil
}

// HealthCheck reports cache occupancy.
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	stats := m.resolver.Stats()
	return modulemanager.HealthStatus{
		Status:      modulemanager.HealthStateHealthy,
		LastChecked: time.Now(),
		Details: map[string]interface{}{
			"sources":       stats.Sources,
			"ready_hls":     stats.ReadyHLS,
			"not_ready_hls": stats.NotReadyHLS,
			"probes_active": stats.ProbesActive,
		},
	}
}
