package modulemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/logger"
)

// ModuleRegistry manages module registration and initialization
type ModuleRegistry struct {
	modules         map[string]Module
	disabledModules map[string]bool
	loaded          []Module
	mu              sync.RWMutex
	initialized     bool
	logger          hclog.Logger
}

// Registry is the process module registry. Modules add themselves from
// their package init.
var Registry = NewRegistry(nil)

// NewRegistry creates an empty registry. Tests build their own so module
// state never leaks between them.
func NewRegistry(log hclog.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		modules:         make(map[string]Module),
		disabledModules: make(map[string]bool),
		logger:          log,
	}
}

func (r *ModuleRegistry) log() hclog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logger.Named("modules")
}

// Register adds a module to the global registry
func Register(m Module) {
	Registry.Register(m)
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		r.log().Warn("module registered after initialization", "module", m.ID())
	}
	r.modules[m.ID()] = m
}

// DisableModule marks a module as disabled. Core modules cannot be disabled.
func (r *ModuleRegistry) DisableModule(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	module, exists := r.modules[id]
	if !exists {
		return fmt.Errorf("module %s not registered", id)
	}
	if module.Core() {
		return fmt.Errorf("cannot disable core module: %s", id)
	}
	r.disabledModules[id] = true
	return nil
}

// LoadAll initializes all enabled modules in dependency order
func (r *ModuleRegistry) LoadAll(ictx *InitContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		r.log().Warn("module system already initialized")
		return nil
	}

	enabledModules := make(map[string]Module)
	for id, module := range r.modules {
		if r.disabledModules[id] {
			r.log().Warn("skipping disabled module", "module", id)
			continue
		}
		enabledModules[id] = module
	}

	depGraph, err := BuildDependencyGraph(enabledModules, r.log())
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	initOrder := depGraph.InitializationOrder()
	r.log().Info("loading modules", "count", len(initOrder))

	for i, module := range initOrder {
		moduleCtx := *ictx
		if ictx.Logger != nil {
			moduleCtx.Logger = ictx.Logger.Named(module.ID())
		} else {
			moduleCtx.Logger = logger.Named(module.ID())
		}

		if err := module.Init(&moduleCtx); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", module.Name(), err)
		}
		r.loaded = append(r.loaded, module)
		r.log().Info("module loaded", "module", module.ID(), "order", i+1)
	}

	r.initialized = true
	return nil
}

// RegisterRoutes registers routes for loaded modules that implement RouteRegistrar
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, module := range r.loaded {
		if routeRegistrar, ok := module.(RouteRegistrar); ok {
			r.log().Debug("registering routes", "module", module.ID())
			routeRegistrar.RegisterRoutes(router)
		}
	}
}

// ReloadConfig hands a new configuration to every ConfigReloadable module.
// All modules are attempted; failures are joined.
func (r *ModuleRegistry) ReloadConfig(cfg *config.Config) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, module := range r.loaded {
		if reloadable, ok := module.(ConfigReloadable); ok {
			if err := reloadable.ReloadConfig(cfg); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", module.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Health collects the status of every module that reports one.
func (r *ModuleRegistry) Health(ctx context.Context) map[string]HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[string]HealthStatus)
	for _, module := range r.loaded {
		if checker, ok := module.(HealthChecker); ok {
			statuses[module.ID()] = checker.HealthCheck(ctx)
		}
	}
	return statuses
}

// Shutdown stops modules in reverse initialization order.
func (r *ModuleRegistry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for i := len(r.loaded) - 1; i >= 0; i-- {
		if s, ok := r.loaded[i].(Shutdowner); ok {
			if err := s.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.loaded[i].ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// GetModule returns a module by ID
func (r *ModuleRegistry) GetModule(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, exists := r.modules[id]
	return module, exists
}

// LoadedModules returns modules in initialization order.
func (r *ModuleRegistry) LoadedModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Module(nil), r.loaded...)
}
