package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/streamgate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSources struct {
	calls []types.AssetPath
}

func (s *stubSources) Resolve(ctx context.Context, path types.AssetPath) (types.VideoSource, error) {
	s.calls = append(s.calls, path)
	return types.VideoSource{Kind: types.SourceKindMP4, URL: "http://gw/stream?url=x"}, nil
}

func (s *stubSources) IsHLSReady(ctx context.Context, base string) bool { return false }

func (s *stubSources) Stats() types.CacheStats { return types.CacheStats{Sources: len(s.calls)} }

func setupRouter(sources *stubSources) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/api/sources"), NewHandler(sources, nil))
	return router
}

func TestResolveEndpoint(t *testing.T) {
	sources := &stubSources{}
	router := setupRouter(sources)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources/resolve?path=videos%2Fa", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var src types.VideoSource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &src))
	assert.Equal(t, types.SourceKindMP4, src.Kind)
	assert.Equal(t, []types.AssetPath{"videos/a"}, sources.calls)
	assert.JSONEq(t, `{"kind":"mp4","url":"http://gw/stream?url=x"}`, w.Body.String())
}

func TestResolveEndpointRequiresPath(t *testing.T) {
	sources := &stubSources{}
	router := setupRouter(sources)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources/resolve", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	assert.Empty(t, sources.calls)
}

func TestCacheStatsEndpoint(t *testing.T) {
	sources := &stubSources{calls: []types.AssetPath{"a", "b"}}
	router := setupRouter(sources)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources/cache", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":2`)
}
