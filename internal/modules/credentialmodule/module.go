// Package credentialmodule owns the shared origin credential. It seeds it
// from configuration, rotates it on reload and pushes it to direct-origin
// clients over a websocket when that mode is enabled.
package credentialmodule

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/modules/credentialmodule/api"
	"github.com/mantonx/streamgate/internal/modules/credentialmodule/core"
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
	"github.com/mantonx/streamgate/internal/services"
)

// Module represents the credential module.
type Module struct {
	store   *core.Store
	handler *api.Handler
	logger  hclog.Logger
}

// NewModule creates an uninitialized credential module.
func NewModule() *Module {
	return &Module{}
}

// ID returns the module identifier
func (m *Module) ID() string {
	return "credentials"
}

// Name returns the human-readable module name
func (m *Module) Name() string {
	return "Credential Module"
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return true
}

// ProvidedServices implements modulemanager.ServiceProvider
func (m *Module) ProvidedServices() []string {
	return []string{services.CredentialServiceName}
}

// Init seeds the store and registers the credential service.
func (m *Module) Init(ictx *modulemanager.InitContext) error {
	m.logger = ictx.Logger
	cfg := ictx.Config

	m.store = core.NewStore(cfg.Origin.APIKey)
	m.handler = api.NewHandler(m.store, cfg.Interceptor.AllowDirectOrigin, cfg.Server.AllowedOrigins, m.logger.Named("channel"))

	services.Register[services.CredentialService](ictx.Services, services.CredentialServiceName, m.store)

	m.logger.Info("credential store ready",
		"configured", cfg.Origin.APIKey != "",
		"direct_origin", cfg.Interceptor.AllowDirectOrigin)
	return nil
}

// RegisterRoutes registers HTTP routes for the credential module
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api.RegisterRoutes(router.Group("/api/credentials"), m.handler)
}

// ReloadConfig rotates the credential and applies the direct-origin switch.
func (m *Module) ReloadConfig(cfg *config.Config) error {
	if cfg.Origin.APIKey != m.store.APIKey() {
		m.store.SetAPIKey(cfg.Origin.APIKey)
		m.logger.Info("origin credential rotated", "subscribers", m.store.Subscribers())
	}
	m.handler.Configure(cfg.Interceptor.AllowDirectOrigin, cfg.Server.AllowedOrigins)
	return nil
}

// HealthCheck reports degraded while no credential is configured, since
// every origin request would fail.
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := modulemanager.HealthStatus{
		Status:      modulemanager.HealthStateHealthy,
		LastChecked: time.Now(),
		Details: map[string]interface{}{
			"direct_origin": m.handler.Enabled(),
			"channels":      m.handler.Connections(),
		},
	}
	if m.store.APIKey() == "" {
		status.Status = modulemanager.HealthStateDegraded
		status.Message = "origin credential is not configured"
	}
	return status
}

// Shutdown closes open credential channels.
func (m *Module) Shutdown(ctx context.Context) error {
	m.handler.CloseAll()
	return nil
}
