package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"

	"github.com/hungpham2401/pdf.js/internal/progress"
	"github.com/hungpham2401/pdf.js/internal/transport"
	"github.com/hungpham2401/pdf.js/pkg/chunked"
	"github.com/hungpham2401/pdf.js/pkg/netutil"
)

// DefaultChunkSize is the range chunk size used when none is
// configured.
const DefaultChunkSize = 65536

// Options configures a fetch.
type Options struct {
	// Workers is the number of parallel range-fetch workers.
	Workers int

	// ChunkSize is the size of each range chunk in bytes.
	ChunkSize int

	// DisableRange forces a whole-resource fetch even when the server
	// supports ranges.
	DisableRange bool

	// StateInterval is how often to persist resume state (every N
	// chunks).
	StateInterval int

	// Force discards existing resume state.
	Force bool

	// MaxConsecutiveFailures is the number of consecutive chunk
	// failures before the circuit breaker trips (default: 10).
	MaxConsecutiveFailures int

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// Transport configures the HTTP client.
	Transport transport.Options

	// Logger for fetch diagnostics. Disabled when nil.
	Logger *zerolog.Logger
}

// Result describes a completed fetch.
type Result struct {
	// Object is the destination object the document was written to.
	Object string
	// Size is the number of bytes written.
	Size int64
	// Chunked reports whether the fetch used range requests.
	Chunked bool
	// Filename is the name suggested by the server's
	// Content-Disposition header, or "".
	Filename string
}

// FailedChunk records information about a chunk that failed to fetch.
type FailedChunk struct {
	Index int
	Error error
}

// CircuitBreakerError is returned when too many consecutive chunk
// failures occur. Use errors.As to extract it and inspect FailedChunks.
type CircuitBreakerError struct {
	ConsecutiveFailures int
	FailedChunks        []FailedChunk
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker tripped: %d consecutive failures", e.ConsecutiveFailures)
}

// Probe fetches metadata about the remote document. The result
// implements netutil.HeaderSource and can be fed to the decision
// functions directly.
func Probe(ctx context.Context, srcURL string, topts transport.Options) (*transport.ResponseInfo, error) {
	if topts.Timeout == 0 {
		topts = transport.DefaultOptions()
	}
	return transport.NewClient(topts).Head(ctx, srcURL)
}

// Fetch retrieves the document at srcURL into the bucket. When dest is
// empty, the destination object name comes from the server's suggested
// filename, falling back to the URL path.
func Fetch(ctx context.Context, srcURL string, bucket *blob.Bucket, dest string, opts Options) (*Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.StateInterval <= 0 {
		opts.StateInterval = 10
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 10
	}
	if opts.Transport.Timeout == 0 {
		opts.Transport = transport.DefaultOptions()
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("url", srcURL).Logger()
	if opts.Transport.Logger == nil {
		opts.Transport.Logger = &log
	}

	client := transport.NewClient(opts.Transport)

	info, err := client.Head(ctx, srcURL)
	if err != nil {
		return nil, fmt.Errorf("probe source: %w", err)
	}

	caps := netutil.ValidateRangeRequestCapabilities(netutil.RangeRequestConfig{
		Source:         info,
		DisableRange:   opts.DisableRange,
		IsHTTP:         isHTTPURL(srcURL),
		RangeChunkSize: opts.ChunkSize,
	})
	filename := netutil.ExtractFilenameFromHeader(info)

	if dest == "" {
		dest = filename
		if dest == "" {
			dest = filenameFromURL(srcURL)
		}
	}

	log.Debug().
		Bool("ranges", caps.AllowRangeRequests).
		Int64("length", caps.SuggestedLength).
		Str("dest", dest).
		Str("filename", filename).
		Msg("negotiated fetch plan")

	result := &Result{Object: dest, Filename: filename}

	if !caps.AllowRangeRequests {
		size, err := fetchWhole(ctx, client, srcURL, bucket, dest)
		if err != nil {
			return nil, err
		}
		result.Size = size
		return result, nil
	}

	if err := fetchChunked(ctx, client, srcURL, bucket, dest, caps.SuggestedLength, info.ETag, opts, log); err != nil {
		return nil, err
	}
	result.Size = caps.SuggestedLength
	result.Chunked = true
	return result, nil
}

// fetchWhole streams the entire resource into the destination object.
func fetchWhole(ctx context.Context, client *transport.Client, srcURL string, bucket *blob.Bucket, dest string) (int64, error) {
	body, err := client.Get(ctx, srcURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	w, err := bucket.NewWriter(ctx, dest, nil)
	if err != nil {
		return 0, fmt.Errorf("create object writer: %w", err)
	}

	n, err := io.Copy(w, body)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("close object writer: %w", err)
	}
	return n, nil
}

type chunkResult struct {
	index int
	err   error
}

// fetchChunked retrieves the document as parallel range chunks and
// assembles them into the destination object.
func fetchChunked(ctx context.Context, client *transport.Client, srcURL string, bucket *blob.Bucket, dest string, length int64, etag string, opts Options, log zerolog.Logger) error {
	f, err := chunked.Write(ctx, bucket, dest,
		chunked.WithChunkSize(int64(opts.ChunkSize)),
		chunked.WithSize(length),
		chunked.WithMetadata(map[string]string{
			"source_url":  srcURL,
			"source_etag": etag,
		}),
		chunked.WithStateInterval(opts.StateInterval),
	)
	if err != nil {
		return fmt.Errorf("create chunked file: %w", err)
	}

	// resumed state must belong to the same document
	if stored := f.Metadata()["source_etag"]; stored != "" && etag != "" && stored != etag {
		if !opts.Force {
			return fmt.Errorf("source changed (etag mismatch: stored=%s, current=%s)", stored, etag)
		}
		if err := f.Reset(ctx); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
	}
	if opts.Force && f.CompletedCount() > 0 {
		if err := f.Reset(ctx); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
	}

	cbCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *chunked.Chunk)
	results := make(chan chunkResult)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				err := fetchChunk(cbCtx, client, srcURL, chunk, opts.Progress)
				select {
				case results <- chunkResult{index: chunk.Index(), err: err}:
				case <-cbCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for {
			chunk, err := f.Next(cbCtx)
			if err == io.EOF {
				return
			}
			if err == chunked.ErrChunkFilled {
				continue
			}
			if err != nil {
				return
			}
			select {
			case jobs <- chunk:
			case <-cbCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		consecutive int
		failed      []FailedChunk
		sinceSave   int
	)
	for r := range results {
		if r.err != nil {
			consecutive++
			failed = append(failed, FailedChunk{Index: r.index, Error: r.err})
			log.Warn().Err(r.err).Int("chunk", r.index).Msg("chunk fetch failed")

			if consecutive >= opts.MaxConsecutiveFailures {
				cancel()
				for range results {
					// drain until workers exit
				}
				f.SaveState(context.WithoutCancel(ctx))
				return &CircuitBreakerError{
					ConsecutiveFailures: consecutive,
					FailedChunks:        failed,
				}
			}
			continue
		}

		consecutive = 0
		sinceSave++
		if sinceSave >= opts.StateInterval {
			sinceSave = 0
			if err := f.SaveState(ctx); err != nil {
				log.Warn().Err(err).Msg("persist resume state")
			}
		}
	}

	if ctx.Err() != nil {
		// interrupted: keep state for resume
		f.SaveState(context.WithoutCancel(ctx))
		return ctx.Err()
	}
	if len(failed) > 0 {
		f.SaveState(ctx)
		return fmt.Errorf("%d chunks failed: %w", len(failed), failed[0].Error)
	}

	if err := f.Complete(ctx); err != nil {
		return fmt.Errorf("assemble document: %w", err)
	}
	return nil
}

// fetchChunk retrieves a single range chunk.
func fetchChunk(ctx context.Context, client *transport.Client, srcURL string, chunk *chunked.Chunk, reporter *progress.Reporter) error {
	if reporter != nil {
		reporter.ChunkStarted()
	}

	startByte := chunk.Offset()
	endByte := startByte + chunk.Length() - 1

	resp, err := client.GetRange(ctx, srcURL, startByte, endByte)
	if err != nil {
		if reporter != nil {
			reporter.ChunkFailed()
		}
		chunk.Abort()
		return fmt.Errorf("fetch chunk %d: %w", chunk.Index(), err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(chunk, resp.Body)
	if err != nil {
		if reporter != nil {
			reporter.ChunkFailed()
		}
		chunk.Abort()
		return fmt.Errorf("write chunk %d: %w", chunk.Index(), err)
	}

	if err := chunk.Close(); err != nil {
		if reporter != nil {
			reporter.ChunkFailed()
		}
		return fmt.Errorf("close chunk %d: %w", chunk.Index(), err)
	}

	if reporter != nil {
		reporter.ChunkCompleted(n)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// filenameFromURL derives a destination name from the URL path.
func filenameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return "document.pdf"
}
