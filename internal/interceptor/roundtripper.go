package interceptor

import (
	"errors"
	"net/http"
)

var errInvalidBase = errors.New("origin base must be an absolute http(s) url")

// RoundTripper applies a Transform to every request, including each hop of
// a redirect chain, before handing it to Base.
type RoundTripper struct {
	Transform Transform
	Base      http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if rt.Transform == nil {
		return base.RoundTrip(req)
	}
	return base.RoundTrip(rt.Transform.Transform(req))
}

// Install wraps client's transport with injector. It returns false and
// leaves the client untouched when there is no client or no credential;
// callers should then use the streaming proxy instead.
func Install(client *http.Client, injector *AuthInjector) bool {
	if client == nil || injector == nil || injector.APIKey() == "" {
		return false
	}
	if rt, ok := client.Transport.(*RoundTripper); ok && rt.Transform == Transform(injector) {
		return true
	}
	client.Transport = &RoundTripper{Transform: injector, Base: client.Transport}
	return true
}
