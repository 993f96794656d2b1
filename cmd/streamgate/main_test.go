package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mantonx/streamgate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"0-99", "bytes=0-99", false},
		{"bytes=-500", "bytes=-500", false},
		{"100-", "bytes=100-", false},
		{"0-1,5-9", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "streamgate dev"))
}

func TestFetchThroughProxy(t *testing.T) {
	var gateway *httptest.Server
	gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sources/resolve":
			_ = json.NewEncoder(w).Encode(types.VideoSource{
				Kind: types.SourceKindMP4,
				URL:  gateway.URL + "/stream?url=x",
			})
		case "/stream":
			assert.Equal(t, "bytes=0-3", r.Header.Get("Range"))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = io.WriteString(w, "abcd")
		default:
			http.NotFound(w, r)
		}
	}))
	defer gateway.Close()

	var out, status bytes.Buffer
	require.NoError(t, runFetch(context.Background(), gateway.URL, "movie", "bytes=0-3", &out, &status))
	assert.Equal(t, "abcd", out.String())
	assert.Contains(t, status.String(), "mp4 source")
}

func TestFetchReportsGatewayErrors(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid asset path"}`)
	}))
	defer gateway.Close()

	var out, status bytes.Buffer
	err := runFetch(context.Background(), gateway.URL, "movie", "", &out, &status)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestFetchHLSFallsBackToProxyWhenChannelRefused(t *testing.T) {
	const manifest = "http://localhost:9000/media/movie/hls/master.m3u8"

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sources/resolve":
			_ = json.NewEncoder(w).Encode(types.VideoSource{Kind: types.SourceKindHLS, URL: manifest})
		case "/api/credentials/ws":
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":"direct origin access is disabled","code":"FORBIDDEN"}`)
		case "/stream":
			assert.Equal(t, manifest, r.URL.Query().Get("url"))
			_, _ = io.WriteString(w, "#EXTM3U\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer gateway.Close()

	var out, status bytes.Buffer
	require.NoError(t, runFetch(context.Background(), gateway.URL, "movie", "", &out, &status))
	assert.Equal(t, "#EXTM3U\n", out.String())
	assert.Contains(t, status.String(), "falling back to proxy: "+gateway.URL+"/stream?url=")
}
