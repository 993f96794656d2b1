package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "streamgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	applyDerivedConfig(cfg)

	require.NoError(t, Validate(cfg))
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, "x-api-key", cfg.Origin.APIKeyHeader)
	assert.Equal(t, 800*time.Millisecond, cfg.Resolver.ProbeTimeout)
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 9090
  public_url: https://watch.example.com/
origin:
  base_url: https://media.example.com/assets/
resolver:
  probe_timeout: 300ms
`)
	t.Setenv("STREAMGATE_API_KEY", "secret-from-env")
	t.Setenv("STREAMGATE_ALLOW_DIRECT_ORIGIN", "true")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))
	cfg := cm.GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://watch.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "https://media.example.com/assets", cfg.Origin.BaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Resolver.ProbeTimeout)
	assert.Equal(t, "secret-from-env", cfg.Origin.APIKey)
	assert.True(t, cfg.Interceptor.AllowDirectOrigin)
	assert.Equal(t, "video/mp4", cfg.Proxy.DefaultContentType, "unset fields keep defaults")
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"origin without scheme", "origin:\n  base_url: media.example.com\n"},
		{"unknown log level", "logging:\n  level: loud\n"},
		{"probe timeout too long", "resolver:\n  probe_timeout: 30s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			cm := NewConfigManager()
			err := cm.LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoadConfigKeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 9191\n")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))

	writeConfig(t, dir, "server:\n  port: -1\n")
	require.Error(t, cm.LoadConfig(path))
	assert.Equal(t, 9191, cm.GetConfig().Server.Port)
}

func TestFileWatcherReloadsAndNotifies(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "origin:\n  api_key: first\n")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))

	rotated := make(chan string, 4)
	cm.AddWatcher(func(oldConfig, newConfig *Config) {
		if oldConfig.Origin.APIKey != newConfig.Origin.APIKey {
			rotated <- newConfig.Origin.APIKey
		}
	})

	watcher, err := NewFileWatcher(cm, nil)
	require.NoError(t, err)
	watcher.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	writeConfig(t, dir, "origin:\n  api_key: second\n")

	select {
	case key := <-rotated:
		assert.Equal(t, "second", key)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}
	assert.Equal(t, "second", cm.GetConfig().Origin.APIKey)
}

func TestWatchersRunInLoadOrder(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManager()

	var applied []string
	cm.AddWatcher(func(oldConfig, newConfig *Config) {
		applied = append(applied, newConfig.Origin.APIKey)
	})

	for _, key := range []string{"k1", "k2", "k3"} {
		path := writeConfig(t, dir, "origin:\n  api_key: "+key+"\n")
		require.NoError(t, cm.LoadConfig(path))
	}

	assert.Equal(t, []string{"k1", "k2", "k3"}, applied)
}

func TestConcurrentLoadsApplyLatestLast(t *testing.T) {
	cm := NewConfigManager()

	var (
		mu          sync.Mutex
		lastApplied string
	)
	cm.AddWatcher(func(oldConfig, newConfig *Config) {
		mu.Lock()
		lastApplied = newConfig.Origin.APIKey
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		path := writeConfig(t, t.TempDir(), fmt.Sprintf("origin:\n  api_key: key-%d\n", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, cm.LoadConfig(path))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, cm.GetConfig().Origin.APIKey, lastApplied)
}

func TestValidateIsSafeAcrossManagers(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			cfg := DefaultConfig()
			cfg.Server.Port = port
			applyDerivedConfig(cfg)
			assert.NoError(t, Validate(cfg))

			cfg.Server.Port = -port
			assert.Error(t, Validate(cfg))
		}(9000 + i)
	}
	wg.Wait()
}
