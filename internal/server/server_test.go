package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/modules/credentialmodule"
	"github.com/mantonx/streamgate/internal/modules/modulemanager"
	"github.com/mantonx/streamgate/internal/modules/sourcemodule"
	"github.com/mantonx/streamgate/internal/modules/streammodule"
	"github.com/mantonx/streamgate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "origin-secret"

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/media/ready/hls/master.m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-VERSION:3\n")
		case "/media/plain/original/source.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = io.WriteString(w, "mp4-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(origin.Close)
	return origin
}

func newTestServer(t *testing.T, originURL string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.PublicURL = "http://gateway.test"
	cfg.Origin.BaseURL = originURL + "/media"
	cfg.Origin.APIKey = testKey

	modules := modulemanager.NewRegistry(hclog.NewNullLogger())
	modules.Register(credentialmodule.NewModule())
	modules.Register(streammodule.NewModule())
	modules.Register(sourcemodule.NewModule())

	s, err := New(Options{Config: cfg, Modules: modules, Logger: hclog.NewNullLogger()})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func resolve(t *testing.T, h http.Handler, asset string) types.VideoSource {
	t.Helper()
	w := get(t, h, "/api/sources/resolve?path="+url.QueryEscape(asset))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var src types.VideoSource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &src))
	return src
}

func TestGatewayResolvesAndStreams(t *testing.T) {
	origin := newOrigin(t)
	s := newTestServer(t, origin.URL)
	h := s.Handler()

	hls := resolve(t, h, "ready")
	assert.Equal(t, types.SourceKindHLS, hls.Kind)
	assert.Equal(t, origin.URL+"/media/ready/hls/master.m3u8", hls.URL)

	mp4 := resolve(t, h, "plain")
	require.Equal(t, types.SourceKindMP4, mp4.Kind)
	require.True(t, strings.HasPrefix(mp4.URL, "http://gateway.test/stream?url="), mp4.URL)

	wrapped, err := url.Parse(mp4.URL)
	require.NoError(t, err)
	w := get(t, h, wrapped.RequestURI())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mp4-bytes", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotContains(t, w.Body.String(), testKey)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := newTestServer(t, newOrigin(t).URL)
	h := s.Handler()
	resolve(t, h, "plain")

	w := get(t, h, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status  string                                `json:"status"`
		Modules map[string]modulemanager.HealthStatus `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, modulemanager.HealthStateHealthy, health.Modules["credentials"].Status)
	assert.Contains(t, health.Modules, "sources")

	w = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `streamgate_resolver_resolutions_total{cache="miss",kind="mp4"} 1`)
}

func TestAPIUsesConfiguredCORS(t *testing.T) {
	s := newTestServer(t, newOrigin(t).URL)

	req := httptest.NewRequest(http.MethodGet, "/api/sources/cache", nil)
	req.Header.Set("Origin", "https://player.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(t, newOrigin(t).URL)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
