package services

import (
	"context"
	"net/http"

	"github.com/mantonx/streamgate/internal/types"
)

// Well-known service names.
const (
	SourceServiceName     = "sources"
	StreamServiceName     = "stream"
	CredentialServiceName = "credentials"
)

// SourceService resolves asset paths into playable sources.
type SourceService interface {
	// Resolve returns the cached source for path, probing the origin for an
	// HLS rendition on first use. Probe failures never surface: they yield
	// the MP4 source. Errors are limited to invalid paths and ctx expiry.
	Resolve(ctx context.Context, path types.AssetPath) (types.VideoSource, error)

	// IsHLSReady reports whether the playlist for a stripped base path is
	// available. At most one probe per base path is issued per process.
	IsHLSReady(ctx context.Context, base string) bool

	// Stats summarizes the resolution and readiness caches.
	Stats() types.CacheStats
}

// StreamService builds and serves proxy-wrapped URLs.
type StreamService interface {
	// WrapURL returns the client-facing proxy URL for an origin file URL.
	WrapURL(originURL string) string

	// Serve streams originURL to w honoring the client's Range header.
	Serve(w http.ResponseWriter, r *http.Request, originURL string) error
}

// CredentialService exposes the current shared origin credential.
type CredentialService interface {
	APIKey() string
	SetAPIKey(key string)
	// Subscribe returns a channel receiving every credential change and a
	// cancel function releasing it.
	Subscribe() (<-chan string, func())
}
