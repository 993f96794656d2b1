package core

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	gwerrors "github.com/mantonx/streamgate/internal/errors"
	"github.com/mantonx/streamgate/internal/metrics"
	"github.com/mantonx/streamgate/internal/types"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultProbeTimeout bounds a readiness probe including the body read.
	DefaultProbeTimeout = 800 * time.Millisecond

	hlsManifestPath = "/hls/master.m3u8"
	probeRange      = "bytes=0-7"
)

var (
	playlistMagic  = []byte("#EXTM3U")
	originalSuffix = regexp.MustCompile(`/original/source\.([A-Za-z0-9]+)$`)
)

// OriginClient is the subset of the origin client used for resolution.
type OriginClient interface {
	Do(ctx context.Context, method, rawURL, rangeHeader string) (*http.Response, error)
	InNamespace(raw string) (*url.URL, error)
	Join(rel string) string
}

// URLWrapper turns an origin file URL into its client-facing proxy form.
type URLWrapper interface {
	WrapURL(originURL string) string
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Cache            *Cache
	Origin           OriginClient
	Wrapper          URLWrapper
	ProbeTimeout     time.Duration
	DefaultExtension string
	Metrics          *metrics.Recorder
	Logger           hclog.Logger
}

// Resolver decides between the HLS ladder and the MP4 original for an asset.
type Resolver struct {
	cache        *Cache
	origin       OriginClient
	wrapper      URLWrapper
	probeTimeout atomic.Int64
	defaultExt   string
	metrics      *metrics.Recorder
	logger       hclog.Logger
	group        singleflight.Group
}

// NewResolver creates a resolver. A nil Cache gets a fresh one.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Cache == nil {
		opts.Cache = NewCache()
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	ext := strings.TrimPrefix(strings.ToLower(opts.DefaultExtension), ".")
	if ext == "" {
		ext = "mp4"
	}

	r := &Resolver{
		cache:      opts.Cache,
		origin:     opts.Origin,
		wrapper:    opts.Wrapper,
		defaultExt: ext,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	r.SetProbeTimeout(opts.ProbeTimeout)
	return r
}

// SetProbeTimeout changes the timeout used by probes started afterwards.
func (r *Resolver) SetProbeTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultProbeTimeout
	}
	r.probeTimeout.Store(int64(d))
}

// ProbeTimeout returns the current probe timeout.
func (r *Resolver) ProbeTimeout() time.Duration {
	return time.Duration(r.probeTimeout.Load())
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Stats summarizes the resolver caches.
func (r *Resolver) Stats() types.CacheStats {
	return r.cache.Stats()
}

// Resolve returns the playable source for path. Probe failures degrade to
// the MP4 source; the only errors are an empty path or ctx ending before
// a result is available. A caller giving up never affects what is cached.
func (r *Resolver) Resolve(ctx context.Context, path types.AssetPath) (types.VideoSource, error) {
	key := types.AssetPath(strings.TrimSpace(string(path)))
	if key == "" {
		return types.VideoSource{}, gwerrors.Validation("resolve", gwerrors.ErrInvalidAssetPath)
	}

	target := r.origin.Join(string(key))
	if isManifest(target) {
		r.metrics.ObserveResolution(string(types.SourceKindHLS), false)
		return types.VideoSource{Kind: types.SourceKindHLS, URL: target}, nil
	}

	if src, ok := r.cache.Source(key); ok {
		r.metrics.ObserveResolution(string(src.Kind), true)
		return src, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(string(key), func() (interface{}, error) {
		if src, ok := r.cache.Source(key); ok {
			return src, nil
		}
		src, settled := r.resolveUncached(detached, target)
		if !settled {
			return src, nil
		}
		return r.cache.StoreSource(key, src), nil
	})

	select {
	case res := <-ch:
		src := res.Val.(types.VideoSource)
		r.metrics.ObserveResolution(string(src.Kind), res.Shared)
		return src, nil
	case <-ctx.Done():
		return types.VideoSource{}, ctx.Err()
	}
}

// resolveUncached reports settled=false when readiness could not be
// decided, in which case the result must not be cached.
func (r *Resolver) resolveUncached(ctx context.Context, target string) (types.VideoSource, bool) {
	base, ext := r.splitOriginal(target)
	mp4URL := base + "/original/source." + ext

	ready, settled := r.readiness(ctx, base)
	if ready {
		r.logger.Debug("resolved hls source", "base", base)
		return types.VideoSource{Kind: types.SourceKindHLS, URL: base + hlsManifestPath}, true
	}

	src := types.VideoSource{Kind: types.SourceKindMP4, URL: mp4URL}
	if _, err := r.origin.InNamespace(mp4URL); err == nil && r.wrapper != nil {
		src.URL = r.wrapper.WrapURL(mp4URL)
	}
	r.logger.Debug("resolved mp4 source", "base", base, "wrapped", src.URL != mp4URL, "settled", settled)
	return src, settled
}

// splitOriginal strips a trailing /original/source.<ext> and returns the
// base URL and the extension. Paths without the suffix are treated as the
// base itself and use the default extension.
func (r *Resolver) splitOriginal(target string) (string, string) {
	u, err := url.Parse(target)
	if err != nil {
		return strings.TrimRight(target, "/"), r.defaultExt
	}
	u.RawQuery = ""
	u.Fragment = ""

	ext := r.defaultExt
	if m := originalSuffix.FindStringSubmatch(u.Path); m != nil {
		ext = m[1]
		u.Path = strings.TrimSuffix(u.Path, m[0])
	}
	u.RawPath = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), ext
}

// IsHLSReady reports whether <base>/hls/master.m3u8 is a playable playlist.
// Only one probe per base is ever issued; concurrent callers wait for it and
// later callers get the settled answer. A caller whose ctx ends while
// waiting gets false without affecting the cached result. While no origin
// credential is configured nothing is sent and nothing is settled.
func (r *Resolver) IsHLSReady(ctx context.Context, base string) bool {
	ready, _ := r.readiness(ctx, base)
	return ready
}

// readiness is IsHLSReady plus whether the answer is settled.
func (r *Resolver) readiness(ctx context.Context, base string) (ready, settled bool) {
	base = strings.TrimRight(base, "/")

	entry, leader := r.cache.acquireProbe(base)
	if !leader {
		select {
		case <-entry.done:
			state, ready := r.cache.readinessOf(base)
			return ready, state == stateSettled
		case <-ctx.Done():
			return false, false
		}
	}

	start := time.Now()
	ready, err := r.probe(ctx, base)
	if err != nil {
		r.cache.releaseProbe(entry)
		return false, false
	}
	r.cache.settleProbe(entry, ready)
	r.metrics.ObserveProbe(ready, time.Since(start))
	return ready, true
}

// probe answers not-ready for every failure. Only configuration errors,
// raised before any request is sent, are returned so the caller can leave
// the base undecided. The probe runs detached from the caller's
// cancellation so an abandoned request cannot settle a base as not ready;
// the timeout still bounds it.
func (r *Resolver) probe(ctx context.Context, base string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.ProbeTimeout())
	defer cancel()

	manifest := base + hlsManifestPath
	resp, err := r.origin.Do(ctx, http.MethodGet, manifest, probeRange)
	if err != nil {
		if gwerrors.GetType(err) == gwerrors.ErrorTypeConfiguration {
			r.logger.Warn("hls probe skipped", "manifest", manifest, "error", err)
			return false, err
		}
		r.logger.Debug("hls probe failed", "manifest", manifest, "error", err)
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		r.logger.Debug("hls manifest not available", "manifest", manifest, "status", resp.StatusCode)
		return false, nil
	}

	head := make([]byte, 8)
	n, _ := io.ReadFull(resp.Body, head)
	if !bytes.HasPrefix(head[:n], playlistMagic) {
		r.logger.Debug("hls manifest malformed", "manifest", manifest, "bytes", n)
		return false, nil
	}
	return true, nil
}

func isManifest(target string) bool {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return strings.HasSuffix(strings.ToLower(target), ".m3u8")
}
