package netutil

import "strconv"

// HeaderSource exposes the headers of one already-fetched response.
// Implementations return the empty string for headers that are absent.
// Header names are passed through exactly as written here
// ("Content-Length", "Accept-Ranges", ...); any case normalization is
// the implementation's concern.
type HeaderSource interface {
	GetResponseHeader(name string) string
}

// RangeRequestConfig carries the inputs for range-capability
// negotiation.
type RangeRequestConfig struct {
	// Source provides the response headers of the probe request.
	Source HeaderSource

	// DisableRange forces whole-resource fetching even when the server
	// advertises range support.
	DisableRange bool

	// IsHTTP reports whether the resource lives on an HTTP(S)
	// transport. Range requests are never attempted elsewhere.
	IsHTTP bool

	// RangeChunkSize is the chunk size the caller intends to fetch
	// with, in bytes. Must be larger than zero.
	RangeChunkSize int
}

// Capabilities is the outcome of range-capability negotiation.
type Capabilities struct {
	// AllowRangeRequests reports whether byte-range requests may be
	// used. True only when SuggestedLength is a known positive size.
	AllowRangeRequests bool

	// SuggestedLength is the total resource size in bytes, or -1 when
	// the server did not report a parsable Content-Length.
	SuggestedLength int64
}

// ValidateRangeRequestCapabilities decides whether byte-range requests
// may be used against a probed resource.
//
// The checks run in a fixed order, each short-circuiting to a negative
// result: range disabled or non-HTTP transport, Accept-Ranges other
// than "bytes", a Content-Encoding present (byte offsets into an
// encoded stream do not address the logical document), and finally a
// length too small to split into at least two chunks. Every negative
// branch still carries the best-effort SuggestedLength so the caller
// can fall back to a single whole-resource fetch of known size.
//
// A RangeChunkSize that is not larger than zero is a caller bug and
// panics before any header is read.
func ValidateRangeRequestCapabilities(cfg RangeRequestConfig) Capabilities {
	if cfg.RangeChunkSize <= 0 {
		panic("rangeChunkSize must be an integer larger than zero.")
	}

	caps := Capabilities{SuggestedLength: -1}
	if n, err := strconv.ParseInt(cfg.Source.GetResponseHeader("Content-Length"), 10, 64); err == nil {
		caps.SuggestedLength = n
	}

	if cfg.DisableRange || !cfg.IsHTTP {
		return caps
	}
	if cfg.Source.GetResponseHeader("Accept-Ranges") != "bytes" {
		return caps
	}
	if cfg.Source.GetResponseHeader("Content-Encoding") != "" {
		return caps
	}
	if caps.SuggestedLength <= 0 || caps.SuggestedLength <= 2*int64(cfg.RangeChunkSize) {
		return caps
	}

	caps.AllowRangeRequests = true
	return caps
}
