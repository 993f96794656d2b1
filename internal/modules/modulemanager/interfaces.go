// Package modulemanager loads gateway modules in dependency order and wires
// their routes, health checks and configuration reloads.
package modulemanager

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/metrics"
	"github.com/mantonx/streamgate/internal/services"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string   // Unique identifier for the module
	Name() string // Display name for the module
	Core() bool   // Whether this is a core module (cannot be disabled)
	Init(ctx *InitContext) error
}

// InitContext carries the shared dependencies handed to each module.
type InitContext struct {
	Config   *config.Config
	Logger   hclog.Logger
	Services *services.Registry
	Metrics  *metrics.Recorder
}

// RouteRegistrar is an optional interface for modules that need to register routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// DependencyProvider is an optional interface for modules that declare dependencies
type DependencyProvider interface {
	// Dependencies returns the list of module IDs this module depends on
	Dependencies() []string
}

// ServiceProvider is an optional interface for modules that provide services
type ServiceProvider interface {
	// ProvidedServices returns the list of service names this module provides
	ProvidedServices() []string
}

// ServiceConsumer is an optional interface for modules that consume services
type ServiceConsumer interface {
	// RequiredServices returns the list of service names this module requires
	RequiredServices() []string
}

// HealthChecker is an optional interface for modules that can report health status
type HealthChecker interface {
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthStatus represents the health of a module
type HealthStatus struct {
	Status      HealthState            `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthState represents the state of a module's health
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// ConfigReloadable is an optional interface for modules that can reload configuration
type ConfigReloadable interface {
	// ReloadConfig applies a new configuration without restart
	ReloadConfig(cfg *config.Config) error
}

// Shutdowner is an optional interface for modules holding long-lived
// connections that must be closed on shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}
