// Package types holds the value types shared between streamgate modules.
package types

import "strings"

// AssetPath is an origin-relative path identifying a video asset, for
// example "videos/abc/original/source.mp4". It is the resolution cache key.
type AssetPath string

// Normalize trims whitespace and leading slashes.
func (p AssetPath) Normalize() AssetPath {
	return AssetPath(strings.TrimLeft(strings.TrimSpace(string(p)), "/"))
}

// String implements fmt.Stringer
func (p AssetPath) String() string {
	return string(p)
}

// SourceKind tells the player which engine to use.
type SourceKind string

const (
	// SourceKindHLS is an HLS master playlist, fetched directly from the origin
	SourceKindHLS SourceKind = "hls"
	// SourceKindMP4 is a progressive file, fetched through the streaming proxy
	SourceKindMP4 SourceKind = "mp4"
)

// VideoSource is a resolved playback source. Once cached for an AssetPath it
// never changes for the lifetime of the process.
type VideoSource struct {
	Kind SourceKind `json:"kind"`
	URL  string     `json:"url"`
}

// CacheStats summarizes the resolver caches.
type CacheStats struct {
	Sources      int `json:"sources"`
	ReadyHLS     int `json:"ready_hls"`
	NotReadyHLS  int `json:"not_ready_hls"`
	ProbesActive int `json:"probes_active"`
}
