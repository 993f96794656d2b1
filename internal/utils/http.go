// Package utils provides HTTP helpers shared by the resolver and the
// streaming proxy.
package utils

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// HTTPRange represents a single byte range from a Range header. End is -1
// for open ended ranges; Suffix is set for "bytes=-N" requests.
type HTTPRange struct {
	Start  int64
	End    int64
	Suffix bool
}

// ParseRangeHeader checks a Range header for the single byte-range form
// players send. The proxy forwards Range untouched; this is used where a
// range is built locally (for example by the CLI) and should be rejected
// before any request is made.
//
// Examples:
//   - "bytes=0-1023" -> start=0, end=1023
//   - "bytes=1024-" -> start=1024, end=-1
//   - "bytes=-1024" -> last 1024 bytes
func ParseRangeHeader(rangeHeader string) (*HTTPRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(rangeHeader, prefix) {
		return nil, fmt.Errorf("invalid range header: %s", rangeHeader)
	}

	rangeSpec := strings.TrimSpace(rangeHeader[len(prefix):])
	if strings.Contains(rangeSpec, ",") {
		return nil, fmt.Errorf("multiple ranges not supported")
	}

	parts := strings.Split(rangeSpec, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid range format")
	}

	r := &HTTPRange{End: -1}

	if parts[0] == "" {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid suffix length: %s", parts[1])
		}
		r.Suffix = true
		r.Start = n
		return r, nil
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("invalid range start: %s", parts[0])
	}
	r.Start = start

	if parts[1] != "" {
		end, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", parts[1])
		}
		if end < start {
			return nil, fmt.Errorf("range end %d before start %d", end, start)
		}
		r.End = end
	}

	return r, nil
}

// GetMediaContentType returns the MIME type for a media container or
// streaming artifact extension, or "" when unknown.
func GetMediaContentType(container string) string {
	switch strings.ToLower(strings.TrimPrefix(container, ".")) {
	case "mp4", "m4v":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	case "ts":
		return "video/mp2t"
	case "m4s":
		return "video/iso.segment"
	case "m3u8":
		return "application/vnd.apple.mpegurl"
	case "mpd":
		return "application/dash+xml"
	case "m4a", "aac":
		return "audio/mp4"
	case "vtt":
		return "text/vtt"
	default:
		return ""
	}
}

// GetFileExtension returns the lowercase extension of a URL or file path
// without the leading dot. Query strings are ignored.
func GetFileExtension(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// Redact replaces every occurrence of secret in s.
func Redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[REDACTED]")
}

// Truncate shortens s to at most limit bytes without splitting a UTF-8
// sequence.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
