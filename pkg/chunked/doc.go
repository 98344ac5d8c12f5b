// Package chunked assembles a document fetched in byte-range chunks
// into a single object in cloud storage.
//
// Chunks are written as part objects under a prefix derived from the
// destination, with a state file that makes an interrupted fetch
// resumable. Completing the file stitches the parts into the final
// object in order and removes the parts and state. The package is
// storage-agnostic via gocloud.dev/blob.
//
// # Writing
//
// Use [Write] to create a chunked file. Call [File.Next] to get
// successive chunks, write data to each chunk, then call
// [File.Complete] to assemble the final object.
//
// Options:
//   - [WithChunkSize]: Size of each chunk (required)
//   - [WithSize]: Total document size (required)
//   - [WithMetadata]: Caller-defined metadata kept in the state file
//
// # Resume
//
// The same [Write] call handles resume automatically. If state exists
// from a previous incomplete fetch, [File.Next] returns
// [ErrChunkFilled] for chunks already written. Use [File.Metadata] to
// validate stored metadata (e.g. that the source ETag has not
// changed). Call [File.Reset] to discard state and start over.
//
// # Storage layout
//
//	{bucket}/{dest}.parts/part-000000
//	{bucket}/{dest}.parts/part-000001
//	{bucket}/{dest}.parts/state.json
//
// After [File.Complete] only {bucket}/{dest} remains.
package chunked
