// Package transport provides the HTTP client that fetches PDF
// documents, whole or in byte ranges.
//
// This package handles:
//   - Connection pooling for parallel range fetches
//   - HEAD probes that expose response headers to the netutil
//     decision layer
//   - Range requests for progressive retrieval
//   - Retry with exponential backoff on 5xx and network errors
//
// Failed statuses surface as the typed errors from pkg/netutil:
// *netutil.MissingPDFError for documents that do not exist and
// *netutil.UnexpectedResponseError for everything else.
//
// # Usage
//
//	client := transport.NewClient(transport.DefaultOptions())
//
//	info, err := client.Head(ctx, url)
//	// info implements netutil.HeaderSource
//
//	resp, err := client.GetRange(ctx, url, startByte, endByte)
//	defer resp.Body.Close()
package transport
