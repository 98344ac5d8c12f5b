// Package fetcher orchestrates progressive PDF retrieval into cloud
// storage.
//
// A fetch starts with a HEAD probe. The probe's headers drive the
// netutil decision layer: range capability negotiation picks between a
// chunked parallel fetch and a single whole-resource fetch, and the
// Content-Disposition filename supplies the destination object name
// when the caller left it empty.
//
// # Usage
//
//	result, err := fetcher.Fetch(ctx, url, bucket, "", fetcher.Options{
//	    Workers:   8,
//	    ChunkSize: 65536,
//	})
//
// # Worker pool
//
// On the chunked path, workers receive chunks from chunked.File, make
// HTTP range requests, and stream the responses into part objects. A
// circuit breaker stops the fetch after too many consecutive failures;
// completed work is persisted so a later call resumes.
package fetcher
