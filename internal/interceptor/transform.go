// Package interceptor attaches the shared origin credential to requests a
// client makes directly to the media origin. It is the alternative to the
// streaming proxy for clients whose HTTP stack can be wrapped.
package interceptor

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/mantonx/streamgate/internal/origin"
)

// Transform rewrites an outgoing request. Implementations must not modify
// the request they are given; they return it unchanged or a clone.
type Transform interface {
	Transform(req *http.Request) *http.Request
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(req *http.Request) *http.Request

// Transform implements Transform
func (f TransformFunc) Transform(req *http.Request) *http.Request {
	return f(req)
}

// MessageSetAPIKey is the credential update message type.
const MessageSetAPIKey = "SET_API_KEY"

// Message is a credential update pushed to clients.
type Message struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

// AuthInjector adds the credential header to requests inside the protected
// origin namespace. The credential is held in memory only and the most
// recently set value always wins.
type AuthInjector struct {
	base   *url.URL
	header string

	mu  sync.RWMutex
	key string
}

// NewAuthInjector scopes an injector to originBase. header defaults to
// x-api-key.
func NewAuthInjector(originBase, header string) (*AuthInjector, error) {
	base, err := url.Parse(strings.TrimRight(originBase, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, &url.Error{Op: "parse", URL: originBase, Err: errInvalidBase}
	}
	if header == "" {
		header = "x-api-key"
	}
	return &AuthInjector{base: base, header: header}, nil
}

// SetAPIKey replaces the credential.
func (a *AuthInjector) SetAPIKey(key string) {
	a.mu.Lock()
	a.key = key
	a.mu.Unlock()
}

// APIKey returns the current credential.
func (a *AuthInjector) APIKey() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key
}

// Apply handles a credential update message. Unknown types are ignored.
func (a *AuthInjector) Apply(msg Message) bool {
	if msg.Type != MessageSetAPIKey {
		return false
	}
	a.SetAPIKey(msg.Key)
	return true
}

// Matches reports whether u is inside the protected namespace.
func (a *AuthInjector) Matches(u *url.URL) bool {
	return origin.MatchesNamespace(a.base, u)
}

// Transform clones in-namespace requests and adds the credential. The clone
// keeps the method, body, Range header and context of the original.
func (a *AuthInjector) Transform(req *http.Request) *http.Request {
	key := a.APIKey()
	if key == "" || !a.Matches(req.URL) {
		return req
	}
	clone := req.Clone(req.Context())
	clone.Header.Set(a.header, key)
	return clone
}
