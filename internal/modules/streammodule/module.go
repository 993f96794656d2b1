// Package streammodule provides the streaming proxy that lets browsers play
// origin media without holding the origin credential.
package streammodule

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
	"github.com/mantonx/streamgate/internal/modules/streammodule/api"
	"github.com/mantonx/streamgate/internal/modules/streammodule/core"
	"github.com/mantonx/streamgate/internal/origin"
	"github.com/mantonx/streamgate/internal/services"
)

// Module represents the streaming proxy module.
type Module struct {
	proxy   *core.Proxy
	handler *api.Handler
	logger  hclog.Logger
}

// NewModule creates an uninitialized stream module.
func NewModule() *Module {
	return &Module{}
}

// ID returns the module identifier
func (m *Module) ID() string {
	return "stream"
}

// Name returns the human-readable module name
func (m *Module) Name() string {
	return "Streaming Proxy Module"
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return true
}

// ProvidedServices implements modulemanager.ServiceProvider
func (m *Module) ProvidedServices() []string {
	return []string{services.StreamServiceName}
}

// RequiredServices implements modulemanager.ServiceConsumer
func (m *Module) RequiredServices() []string {
	return []string{services.CredentialServiceName}
}

// Init builds the proxy and registers the stream service.
func (m *Module) Init(ictx *modulemanager.InitContext) error {
	m.logger = ictx.Logger
	cfg := ictx.Config

	credentials, err := services.Get[services.CredentialService](ictx.Services, services.CredentialServiceName)
	if err != nil {
		return fmt.Errorf("credential service not available: %w", err)
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

	m.proxy = core.NewProxy(client, settingsFrom(cfg), ictx.Metrics, m.logger.Named("proxy"))
	m.handler = api.NewHandler(m.proxy, m.logger.Named("api"))

	services.Register[services.StreamService](ictx.Services, services.StreamServiceName, m.proxy)

	if credentials.APIKey() == "" {
		m.logger.Warn("origin credential is not configured; proxied requests will fail until it is set")
	}
	m.logger.Info("streaming proxy ready", "public_url", cfg.Server.PublicURL)
	return nil
}

func settingsFrom(cfg *config.Config) core.Settings {
	return core.Settings{
		PublicURL:          cfg.Server.PublicURL,
		DefaultContentType: cfg.Proxy.DefaultContentType,
		ErrorBodyLimit:     cfg.Proxy.ErrorBodyLimit,
	}
}

// RegisterRoutes registers HTTP routes for the stream module
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api.RegisterRoutes(router, m.handler)
}

// ReloadConfig applies new proxy settings to subsequent requests.
func (m *Module) ReloadConfig(cfg *config.Config) error {
	m.proxy.Configure(settingsFrom(cfg))
	return nil
}
