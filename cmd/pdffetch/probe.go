package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hungpham2401/pdf.js/internal/fetcher"
	"github.com/hungpham2401/pdf.js/internal/progress"
	"github.com/hungpham2401/pdf.js/internal/transport"
	"github.com/hungpham2401/pdf.js/pkg/netutil"
)

// runProbe inspects a document URL and reports the decisions a fetch
// would make: range support, suggested length, and filename.
func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)

	url := fs.String("url", "", "Document URL (required)")
	chunkSize := fs.String("chunk-size", "64KB", "Range chunk size used for the range decision")

	headers := headerFlags{}
	fs.Var(headers, "header", "Extra request header as \"Name: value\" (repeatable)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: pdffetch probe [options]

Send a HEAD request to a document URL and report whether a fetch would
use range requests, the document length, and the server-suggested
filename.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	chunkBytes, err := progress.ParseBytes(*chunkSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid chunk size: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := fetcher.Probe(ctx, *url, transport.Options{
		MaxIdleConnsPerHost: 2,
		Timeout:             30 * time.Second,
		RetryAttempts:       2,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     5 * time.Second,
		ExtraHeaders:        netutil.CreateHeaders(true, headers),
	})
	if err != nil {
		return reportFetchError(err)
	}

	caps := netutil.ValidateRangeRequestCapabilities(netutil.RangeRequestConfig{
		Source:         info,
		IsHTTP:         true,
		RangeChunkSize: int(chunkBytes),
	})
	filename := netutil.ExtractFilenameFromHeader(info)

	fmt.Printf("status:        %d\n", info.Status)
	fmt.Printf("content-type:  %s\n", info.ContentType)
	if caps.SuggestedLength >= 0 {
		fmt.Printf("length:        %d (%s)\n", caps.SuggestedLength, progress.FormatBytes(caps.SuggestedLength))
	} else {
		fmt.Printf("length:        unknown\n")
	}
	if caps.AllowRangeRequests {
		chunks := (caps.SuggestedLength + chunkBytes - 1) / chunkBytes
		fmt.Printf("ranges:        supported (%d chunks of %s)\n", chunks, progress.FormatBytes(chunkBytes))
	} else {
		fmt.Printf("ranges:        not usable\n")
	}
	if filename != "" {
		fmt.Printf("filename:      %s\n", filename)
	} else {
		fmt.Printf("filename:      (none suggested)\n")
	}
	if info.ETag != "" {
		fmt.Printf("etag:          %s\n", info.ETag)
	}

	return ExitSuccess
}
