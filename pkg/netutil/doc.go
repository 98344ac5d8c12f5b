// Package netutil provides the header-driven decisions a document
// fetching client makes about a server response: whether byte-range
// requests can be used for progressive retrieval, what filename to
// suggest for the downloaded document, and how to classify a response
// status.
//
// Every function is pure and stateless. The package performs no I/O;
// callers hand it already-fetched header data through the one-method
// [HeaderSource] interface and compose the decisions around their own
// transport.
//
// # Usage
//
//	info, err := client.Head(ctx, url) // info implements HeaderSource
//
//	caps := netutil.ValidateRangeRequestCapabilities(netutil.RangeRequestConfig{
//	    Source:         info,
//	    IsHTTP:         true,
//	    RangeChunkSize: 65536,
//	})
//	// caps.AllowRangeRequests, caps.SuggestedLength
//
//	name := netutil.ExtractFilenameFromHeader(info)
//
//	if !netutil.ValidateResponseStatus(status) {
//	    return netutil.CreateResponseStatusError(status, url)
//	}
//
// # Error model
//
// Untrustworthy server data (missing headers, unparsable lengths,
// malformed disposition values) never produces an error; the functions
// return conservative values instead so the caller can degrade to a
// whole-resource fetch or an unnamed download. The one exception is an
// invalid RangeChunkSize, which is a caller bug and panics.
package netutil
