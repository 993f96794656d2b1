package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/streamgate/internal/modules/streammodule/core"
	"github.com/mantonx/streamgate/internal/origin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "s3cret-key"

func newGateway(t *testing.T, originURL, key string) *httptest.Server {
	t.Helper()
	client, err := origin.NewClient(origin.Options{
		BaseURL:     originURL + "/media",
		Credentials: origin.StaticCredential(key),
	})
	require.NoError(t, err)

	proxy := core.NewProxy(client, core.Settings{DefaultContentType: "video/mp4", ErrorBodyLimit: 512}, nil, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router, NewHandler(proxy, nil))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func streamURL(gateway, target string) string {
	return gateway + "/stream?url=" + url.QueryEscape(target)
}

func TestStreamBeginsBeforeOriginFinishes(t *testing.T) {
	release := make(chan struct{})
	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 100-199/1000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(strings.Repeat("a", 100)))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer originSrv.Close()
	defer close(release)

	gw := newGateway(t, originSrv.URL, testKey)

	req, err := http.NewRequest(http.MethodGet, streamURL(gw.URL, originSrv.URL+"/media/v/original/source.mp4"), nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=100-199")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 100-199/1000", resp.Header.Get("Content-Range"))

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 100)
		n, _ := io.ReadFull(resp.Body, buf)
		got <- buf[:n]
	}()

	select {
	case body := <-got:
		assert.Len(t, body, 100)
	case <-time.After(3 * time.Second):
		t.Fatal("proxy buffered the origin response")
	}
}

func TestStreamRangeBodyIsExact(t *testing.T) {
	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 100-199/1000")
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(strings.Repeat("b", 100)))
	}))
	defer originSrv.Close()

	gw := newGateway(t, originSrv.URL, testKey)

	req, _ := http.NewRequest(http.MethodGet, streamURL(gw.URL, originSrv.URL+"/media/v.mp4"), nil)
	req.Header.Set("Range", "bytes=100-199")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Len(t, body, 100)
}

func TestStreamRejectsForeignURL(t *testing.T) {
	var calls atomic.Int32
	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer originSrv.Close()

	gw := newGateway(t, originSrv.URL, testKey)

	for _, target := range []string{"https://example.org/media/v.mp4", ""} {
		resp, err := http.Get(streamURL(gw.URL, target))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Contains(t, string(body), "VALIDATION_ERROR")
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	}
	assert.Zero(t, calls.Load())
}

func TestStreamPreflight(t *testing.T) {
	gw := newGateway(t, "http://127.0.0.1:1", testKey)

	req, _ := http.NewRequest(http.MethodOptions, gw.URL+"/stream", nil)
	req.Header.Set("Origin", "https://player.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "range")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET, HEAD, OPTIONS")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Range")
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestStreamOriginStatusIsPassedThrough(t *testing.T) {
	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such object for "+r.Header.Get("x-api-key"), http.StatusNotFound)
	}))
	defer originSrv.Close()

	gw := newGateway(t, originSrv.URL, testKey)

	resp, err := http.Get(streamURL(gw.URL, originSrv.URL+"/media/missing.mp4"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "no such object")
	assert.NotContains(t, string(body), testKey)
}

func TestStreamTransportFailureIsGeneric500(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	gw := newGateway(t, deadURL, testKey)

	resp, err := http.Get(streamURL(gw.URL, deadURL+"/media/v.mp4"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "failed to reach media origin")
	assert.NotContains(t, string(body), strings.TrimPrefix(deadURL, "http://"))
}

func TestClientDisconnectAbortsOriginFetch(t *testing.T) {
	aborted := make(chan struct{})
	originSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		for {
			if _, err := w.Write([]byte(strings.Repeat("c", 1024))); err != nil {
				break
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				close(aborted)
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		close(aborted)
	}))
	defer originSrv.Close()

	gw := newGateway(t, originSrv.URL, testKey)

	resp, err := http.Get(streamURL(gw.URL, originSrv.URL+"/media/endless.mp4"))
	require.NoError(t, err)
	_, err = io.ReadFull(resp.Body, make([]byte, 2048))
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("origin request outlived the client")
	}
}
