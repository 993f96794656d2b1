// Package server assembles the gateway: it loads the registered modules,
// mounts their routes on a gin engine and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/logger"
	"github.com/mantonx/streamgate/internal/metrics"
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
	"github.com/mantonx/streamgate/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Server owns the HTTP listener and the loaded module set.
type Server struct {
	cfg      *config.Config
	modules  *modulemanager.ModuleRegistry
	services *services.Registry
	metrics  *metrics.Recorder
	engine   *gin.Engine
	http     *http.Server
	logger   hclog.Logger
}

// Options configures New.
type Options struct {
	Config *config.Config
	// Modules defaults to modulemanager.Registry.
	Modules *modulemanager.ModuleRegistry
	Logger  hclog.Logger
}

// New loads every enabled module and builds the router.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server: configuration required")
	}
	if opts.Modules == nil {
		opts.Modules = modulemanager.Registry
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("server")
	}

	s := &Server{
		cfg:      opts.Config,
		modules:  opts.Modules,
		services: services.NewRegistry(),
		logger:   opts.Logger,
	}

	if s.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rec, err := metrics.New("streamgate", reg)
		if err != nil {
			return nil, err
		}
		s.metrics = rec
	}

	if err := s.modules.LoadAll(&modulemanager.InitContext{
		Config:   s.cfg,
		Logger:   logger.Named("module"),
		Services: s.services,
		Metrics:  s.metrics,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize modules: %w", err)
	}
	logModuleStatus(s.logger, s.modules)

	s.engine = SetupRouter(s.cfg, s.modules, s.metrics, s.logger.Named("http"))
	s.http = &http.Server{
		Addr:        s.cfg.Server.ListenAddr(),
		Handler:     s.engine,
		ReadTimeout: s.cfg.Server.ReadTimeout,
		// WriteTimeout of 0 leaves long media streams unbounded.
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Services exposes the service registry populated by the modules.
func (s *Server) Services() *services.Registry {
	return s.services
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("gateway listening", "addr", l.Addr().String(), "public_url", s.cfg.Server.PublicURL)
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown drains in-flight requests and then stops the modules. Streams
// still running when ctx expires are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gateway")

	// Hijacked websocket connections are invisible to http.Server.Shutdown,
	// so modules close them first.
	modErr := s.modules.Shutdown(ctx)

	httpErr := s.http.Shutdown(ctx)
	if errors.Is(httpErr, context.DeadlineExceeded) {
		s.logger.Warn("shutdown deadline reached, closing remaining streams")
		httpErr = errors.Join(httpErr, s.http.Close())
	}
	return errors.Join(modErr, httpErr)
}

// Reload applies a new configuration to the running modules.
func (s *Server) Reload(cfg *config.Config) error {
	return s.modules.ReloadConfig(cfg)
}

func logModuleStatus(log hclog.Logger, modules *modulemanager.ModuleRegistry) {
	loaded := modules.LoadedModules()
	log.Info("module system initialized", "modules", len(loaded))
	for _, m := range loaded {
		log.Debug("module", "id", m.ID(), "name", m.Name(), "core", m.Core())
	}
}
