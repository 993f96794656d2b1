// Package origin talks to the authenticated media object store. It owns the
// namespace check that decides which URLs may carry the shared credential.
package origin

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	gwerrors "github.com/mantonx/streamgate/internal/errors"
)

// CredentialSource supplies the current shared origin credential.
type CredentialSource interface {
	APIKey() string
}

// StaticCredential is a fixed credential, used by the CLI and tests.
type StaticCredential string

// APIKey implements CredentialSource
func (s StaticCredential) APIKey() string { return string(s) }

// Options configures a Client.
type Options struct {
	BaseURL               string
	APIKeyHeader          string
	Credentials           CredentialSource
	ResponseHeaderTimeout time.Duration
	// HTTPClient overrides the default client. Timeouts set on it apply to
	// whole exchanges, including streamed bodies.
	HTTPClient *http.Client
	Logger     hclog.Logger
}

// Client issues credentialed requests against the media origin.
type Client struct {
	base        *url.URL
	header      string
	credentials CredentialSource
	http        *http.Client
	logger      hclog.Logger
}

// NewClient validates the base URL and builds a client.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	header := opts.APIKeyHeader
	if header == "" {
		header = "x-api-key"
	}
	creds := opts.Credentials
	if creds == nil {
		creds = StaticCredential("")
	}
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = opts.ResponseHeaderTimeout
		// Range requests must reach the origin exactly as sent.
		transport.DisableCompression = true
		transport.DialContext = (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext
		httpClient = &http.Client{Transport: transport}
	}

	c := &Client{
		base:        base,
		header:      header,
		credentials: creds,
		http:        httpClient,
		logger:      log,
	}
	if httpClient.CheckRedirect == nil {
		httpClient.CheckRedirect = c.checkRedirect
	}
	return c, nil
}

// checkRedirect drops the credential when the origin redirects outside the
// namespace. net/http only strips its own sensitive headers across hosts.
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return http.ErrUseLastResponse
	}
	if !c.Matches(req.URL) {
		req.Header.Del(c.header)
	}
	return nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, gwerrors.Configuration("origin_client", gwerrors.ErrInvalidOriginURL).
			WithDetail("base_url", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the configured origin base without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Header returns the credential header name.
func (c *Client) Header() string {
	return c.header
}

// APIKey returns the current credential.
func (c *Client) APIKey() string {
	return c.credentials.APIKey()
}

// Join resolves an origin-relative path against the base URL. Absolute
// URLs are returned unchanged.
func (c *Client) Join(rel string) string {
	if strings.Contains(rel, "://") {
		return rel
	}
	joined := *c.base
	joined.Path = path.Join(c.base.Path, "/", rel)
	return joined.String()
}

// InNamespace reports whether raw addresses the protected asset namespace:
// same scheme and host as the base URL, and a cleaned path at or below the
// base path. It returns the parsed URL on success.
func (c *Client) InNamespace(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, gwerrors.Validation("namespace", gwerrors.ErrInvalidOriginURL).WithDetail("url", raw)
	}
	if !c.Matches(u) {
		return nil, gwerrors.Validation("namespace", gwerrors.ErrOutsideNamespace).WithDetail("url", raw)
	}
	return u, nil
}

// Matches is the namespace predicate without error construction.
func (c *Client) Matches(u *url.URL) bool {
	return MatchesNamespace(c.base, u)
}

// MatchesNamespace reports whether u lies under base. Dot segments are
// cleaned before comparison so "../" cannot escape the prefix.
func MatchesNamespace(base, u *url.URL) bool {
	if u == nil || !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return false
	}
	prefix := strings.TrimRight(base.Path, "/")
	if prefix == "" {
		return true
	}
	p := path.Clean("/" + u.Path)
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Do sends a credentialed request for an in-namespace URL. rangeHeader is
// forwarded unchanged when non-empty. The returned response is the raw
// origin response, whatever its status; only transport failures and
// configuration problems are returned as errors.
func (c *Client) Do(ctx context.Context, method, rawURL, rangeHeader string) (*http.Response, error) {
	u, err := c.InNamespace(rawURL)
	if err != nil {
		return nil, err
	}

	key := c.credentials.APIKey()
	if key == "" {
		return nil, gwerrors.Configuration("origin_fetch", gwerrors.ErrMissingCredential)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, gwerrors.New(gwerrors.ErrorTypeInternal, "origin_fetch", err)
	}
	req.Header.Set(c.header, key)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("origin request failed", "method", method, "url", u.Redacted(), "error", err)
		return nil, gwerrors.Transport("origin_fetch", err)
	}

	c.logger.Trace("origin responded", "method", method, "url", u.Redacted(), "status", resp.StatusCode)
	return resp, nil
}
