// Package core implements the streaming proxy: it relays Range requests to
// the authenticated media origin and streams the response back unbuffered.
package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	gwerrors "github.com/mantonx/streamgate/internal/errors"
	"github.com/mantonx/streamgate/internal/metrics"
	"github.com/mantonx/streamgate/internal/utils"
)

const copyBufferSize = 32 * 1024

// OriginFetcher is the subset of the origin client used by the proxy.
type OriginFetcher interface {
	Do(ctx context.Context, method, rawURL, rangeHeader string) (*http.Response, error)
	InNamespace(raw string) (*url.URL, error)
	APIKey() string
}

// Settings are the reloadable proxy parameters.
type Settings struct {
	PublicURL          string
	DefaultContentType string
	ErrorBodyLimit     int
}

// Proxy relays client requests to the media origin.
type Proxy struct {
	origin   OriginFetcher
	settings atomic.Pointer[Settings]
	metrics  *metrics.Recorder
	logger   hclog.Logger
}

// NewProxy creates a proxy.
func NewProxy(origin OriginFetcher, settings Settings, rec *metrics.Recorder, logger hclog.Logger) *Proxy {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p := &Proxy{origin: origin, metrics: rec, logger: logger}
	p.Configure(settings)
	return p
}

// Configure replaces the proxy settings for subsequent requests.
func (p *Proxy) Configure(s Settings) {
	if s.DefaultContentType == "" {
		s.DefaultContentType = "video/mp4"
	}
	if s.ErrorBodyLimit < 0 {
		s.ErrorBodyLimit = 0
	}
	p.settings.Store(&s)
}

// WrapURL returns the client-facing proxy URL for an origin file URL.
func (p *Proxy) WrapURL(originURL string) string {
	return WrapURL(p.settings.Load().PublicURL, originURL)
}

// Serve relays one exchange. Errors returned before anything was written
// are *errors.GatewayError values for the caller to render; CORS headers
// are already set on w. Errors after the status line was sent only mean
// the body copy stopped, usually because the client went away.
//
// The origin request is bound to r's context and is never retried.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, originURL string) error {
	settings := p.settings.Load()
	SetCORSHeaders(w.Header())

	if originURL == "" {
		return p.fail(r, gwerrors.Validation("stream", gwerrors.ErrMissingURL))
	}
	if _, err := p.origin.InNamespace(originURL); err != nil {
		return p.fail(r, err)
	}

	method := http.MethodGet
	if r.Method == http.MethodHead {
		method = http.MethodHead
	}
	clientRange := r.Header.Get("Range")

	start := time.Now()
	resp, err := p.origin.Do(r.Context(), method, originURL, clientRange)
	if err != nil {
		return p.fail(r, err)
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.fail(r, p.originError(resp, settings.ErrorBodyLimit))
	}

	h := w.Header()
	h.Set("Content-Type", contentType(resp, originURL, settings.DefaultContentType))
	for _, name := range relayedHeaders {
		if v := resp.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}

	status := http.StatusOK
	if resp.StatusCode == http.StatusPartialContent && clientRange != "" {
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	var written int64
	if method != http.MethodHead {
		buf := make([]byte, copyBufferSize)
		written, err = io.CopyBuffer(newFlushWriter(w), resp.Body, buf)
	}
	p.metrics.ObserveProxy(r.Method, status, latency, written)

	if err != nil {
		p.logger.Debug("stream interrupted",
			"request_id", h.Get("X-Request-ID"),
			"bytes", written,
			"error", err)
		return err
	}

	p.logger.Trace("stream complete",
		"request_id", h.Get("X-Request-ID"),
		"status", status,
		"range", clientRange,
		"bytes", written)
	return nil
}

// originError builds the client error for a non-2xx origin response. The
// diagnostic body is bounded and has the credential removed.
func (p *Proxy) originError(resp *http.Response, limit int) *gwerrors.GatewayError {
	gErr := gwerrors.Origin("stream", resp.StatusCode)
	if limit == 0 {
		return gErr
	}

	// Read past the limit by the key length so a credential straddling the
	// cut is still redacted.
	key := p.origin.APIKey()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, int64(limit+len(key))))
	body := utils.Truncate(utils.Redact(string(raw), key), limit)
	if body != "" {
		gErr.WithDetail("origin_body", body)
	}
	return gErr
}

func (p *Proxy) fail(r *http.Request, err error) error {
	var gErr *gwerrors.GatewayError
	if !errors.As(err, &gErr) {
		gErr = gwerrors.New(gwerrors.ErrorTypeInternal, "stream", err)
	}
	p.metrics.ObserveProxy(r.Method, gErr.HTTPStatus(), 0, 0)
	return gErr
}

func contentType(resp *http.Response, originURL, fallback string) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := utils.GetMediaContentType(utils.GetFileExtension(originURL)); ct != "" {
		return ct
	}
	return fallback
}
