// Package progress provides progress reporting for document fetches.
//
// The reporter prints a single updating line to stderr with completion
// percentage, transfer speed, and chunk counts.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalSize:   totalBytes,
//	    TotalChunks: numChunks,
//	    SourceURL:   url,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// update as chunks complete
//	reporter.ChunkCompleted(chunkSize)
//
// # Output format
//
//	[pdffetch] fetching https://example.com/compressed.tracemonkey-pldi-09.pdf
//	[pdffetch]  45.2%  448.00 KB / 0.97 MB  1.20 MB/s  chunks 7/16
package progress
