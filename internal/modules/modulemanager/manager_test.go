package modulemanager

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	id       string
	core     bool
	provides []string
	requires []string
	initLog  *[]string
	reloaded *config.Config
	stopped  *[]string
	initErr  error
}

func (m *fakeModule) ID() string                 { return m.id }
func (m *fakeModule) Name() string               { return m.id + " module" }
func (m *fakeModule) Core() bool                 { return m.core }
func (m *fakeModule) ProvidedServices() []string { return m.provides }
func (m *fakeModule) RequiredServices() []string { return m.requires }

func (m *fakeModule) Init(ctx *InitContext) error {
	*m.initLog = append(*m.initLog, m.id)
	return m.initErr
}

func (m *fakeModule) ReloadConfig(cfg *config.Config) error {
	m.reloaded = cfg
	return nil
}

func (m *fakeModule) Shutdown(ctx context.Context) error {
	*m.stopped = append(*m.stopped, m.id)
	return nil
}

func newInitContext() *InitContext {
	return &InitContext{
		Config:   config.DefaultConfig(),
		Logger:   hclog.NewNullLogger(),
		Services: services.NewRegistry(),
	}
}

func TestLoadAllOrdersByServiceDependencies(t *testing.T) {
	var initLog, stopped []string
	reg := NewRegistry(hclog.NewNullLogger())

	reg.Register(&fakeModule{id: "a-stream", requires: []string{"credentials"}, initLog: &initLog, stopped: &stopped})
	reg.Register(&fakeModule{id: "b-sources", requires: []string{"credentials", "stream"}, provides: []string{"sources"}, initLog: &initLog, stopped: &stopped})
	reg.Register(&fakeModule{id: "z-credentials", provides: []string{"credentials"}, initLog: &initLog, stopped: &stopped})
	reg.modules["a-stream"].(*fakeModule).provides = []string{"stream"}

	require.NoError(t, reg.LoadAll(newInitContext()))
	assert.Equal(t, []string{"z-credentials", "a-stream", "b-sources"}, initLog)

	cfg := config.DefaultConfig()
	require.NoError(t, reg.ReloadConfig(cfg))
	for _, m := range reg.LoadedModules() {
		assert.Same(t, cfg, m.(*fakeModule).reloaded)
	}

	require.NoError(t, reg.Shutdown(context.Background()))
	assert.Equal(t, []string{"b-sources", "a-stream", "z-credentials"}, stopped)
}

func TestLoadAllMissingProvider(t *testing.T) {
	var initLog []string
	reg := NewRegistry(hclog.NewNullLogger())
	reg.Register(&fakeModule{id: "stream", requires: []string{"credentials"}, initLog: &initLog})

	err := reg.LoadAll(newInitContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
	assert.Empty(t, initLog)
}

func TestLoadAllDetectsCycles(t *testing.T) {
	var initLog []string
	reg := NewRegistry(hclog.NewNullLogger())
	reg.Register(&fakeModule{id: "a", provides: []string{"x"}, requires: []string{"y"}, initLog: &initLog})
	reg.Register(&fakeModule{id: "b", provides: []string{"y"}, requires: []string{"x"}, initLog: &initLog})

	err := reg.LoadAll(newInitContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestLoadAllPropagatesInitError(t *testing.T) {
	var initLog []string
	reg := NewRegistry(hclog.NewNullLogger())
	reg.Register(&fakeModule{id: "broken", initLog: &initLog, initErr: errors.New("boom")})

	err := reg.LoadAll(newInitContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDisableModule(t *testing.T) {
	var initLog []string
	reg := NewRegistry(hclog.NewNullLogger())
	reg.Register(&fakeModule{id: "core", core: true, initLog: &initLog})
	reg.Register(&fakeModule{id: "extra", initLog: &initLog})

	assert.Error(t, reg.DisableModule("core"))
	assert.Error(t, reg.DisableModule("missing"))
	require.NoError(t, reg.DisableModule("extra"))

	require.NoError(t, reg.LoadAll(newInitContext()))
	assert.Equal(t, []string{"core"}, initLog)
}
