package core

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS values sent on every proxy response, including preflight.
const (
	AllowOrigin   = "*"
	AllowMethods  = "GET, HEAD, OPTIONS"
	AllowHeaders  = "Range, Content-Range, Content-Type"
	ExposeHeaders = "Content-Range, Content-Length, Accept-Ranges"
	PreflightAge  = "86400"
)

// relayedHeaders are copied from the origin response when present.
var relayedHeaders = []string{"Content-Length", "Content-Range", "Accept-Ranges"}

// SetCORSHeaders adds the permissive CORS headers that let cross-origin
// <video> elements issue Range requests and read range metadata.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", AllowOrigin)
	h.Set("Access-Control-Allow-Methods", AllowMethods)
	h.Set("Access-Control-Allow-Headers", AllowHeaders)
	h.Set("Access-Control-Expose-Headers", ExposeHeaders)
}

// SetPreflightHeaders adds the CORS headers plus a preflight cache lifetime.
func SetPreflightHeaders(h http.Header) {
	SetCORSHeaders(h)
	h.Set("Access-Control-Max-Age", PreflightAge)
}

// WrapURL returns the client-facing proxy URL for originURL.
func WrapURL(publicBase, originURL string) string {
	return strings.TrimRight(publicBase, "/") + "/stream?url=" + url.QueryEscape(originURL)
}
