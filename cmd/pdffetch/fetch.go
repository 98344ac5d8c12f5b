package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/hungpham2401/pdf.js/internal/config"
	"github.com/hungpham2401/pdf.js/internal/fetcher"
	"github.com/hungpham2401/pdf.js/internal/progress"
	"github.com/hungpham2401/pdf.js/internal/transport"
	"github.com/hungpham2401/pdf.js/pkg/netutil"
)

// headerFlags collects repeated -header "Name: value" flags.
type headerFlags map[string]any

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, fmt.Sprintf("%s: %v", k, v))
	}
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("expected \"Name: value\", got %q", value)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(val)
	return nil
}

// runFetch retrieves a PDF document from an HTTP URL into object
// storage, using parallel range requests when the server supports them.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)

	url := fs.String("url", "", "Document URL (required)")
	bucket := fs.String("bucket", "", "Destination bucket URL (required)")
	object := fs.String("object", "", "Destination object name (default: server-suggested filename)")
	configPath := fs.String("config", "", "Path to YAML config file")
	workers := fs.Int("workers", 0, "Number of parallel range workers")
	chunkSize := fs.String("chunk-size", "", "Size of each range chunk")
	disableRange := fs.Bool("disable-range", false, "Fetch the whole document in one request")
	showProgress := fs.Bool("progress", false, "Show progress output")
	force := fs.Bool("force", false, "Discard existing resume state")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	retryAttempts := fs.Int("retry-attempts", 0, "Max retry attempts per request")
	retryBackoff := fs.Duration("retry-backoff", 0, "Initial retry backoff")
	retryMaxBackoff := fs.Duration("retry-max-backoff", 0, "Max retry backoff")
	stateInterval := fs.Int("state-interval", 0, "Persist resume state every N chunks")

	headers := headerFlags{}
	fs.Var(headers, "header", "Extra request header as \"Name: value\" (repeatable)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: pdffetch fetch [options]

Fetch a PDF document from an HTTP URL into object storage. When the
server supports byte ranges and the document is large enough, the
fetch runs as parallel range requests with resumable state.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, code := buildConfig(fs, *configPath, config.Config{
		URL:          *url,
		Bucket:       *bucket,
		Object:       *object,
		Workers:      *workers,
		DisableRange: *disableRange,
		Progress:     *showProgress,
		Force:        *force,
		Verbose:      *verbose,
		Headers:      headers,
		Retry: config.RetryConfig{
			Attempts:   *retryAttempts,
			Backoff:    *retryBackoff,
			MaxBackoff: *retryMaxBackoff,
		},
		StateInterval: *stateInterval,
	}, *chunkSize)
	if code != ExitSuccess {
		return code
	}

	log := newLogger(cfg.Verbose)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[pdffetch] Received interrupt, shutting down...")
		cancel()
	}()

	bkt, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bkt.Close()

	topts := transportOptions(cfg)

	var reporter *progress.Reporter
	if cfg.Progress {
		info, err := fetcher.Probe(ctx, cfg.URL, topts)
		if err != nil {
			return reportFetchError(err)
		}
		totalChunks := 0
		if info.Size > 0 {
			totalChunks = int((info.Size + cfg.ChunkSize - 1) / cfg.ChunkSize)
		}
		reporter = progress.NewReporter(progress.Options{
			TotalSize:   info.Size,
			TotalChunks: totalChunks,
			SourceURL:   cfg.URL,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	result, err := fetcher.Fetch(ctx, cfg.URL, bkt, cfg.Object, fetcher.Options{
		Workers:       cfg.Workers,
		ChunkSize:     int(cfg.ChunkSize),
		DisableRange:  cfg.DisableRange,
		StateInterval: cfg.StateInterval,
		Force:         cfg.Force,
		Progress:      reporter,
		Transport:     topts,
		Logger:        &log,
	})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "[pdffetch] Fetch interrupted, state saved for resume")
			return ExitGeneralError
		}
		return reportFetchError(err)
	}

	if reporter != nil {
		reporter.Stop()
	}
	mode := "whole"
	if result.Chunked {
		mode = "chunked"
	}
	fmt.Fprintf(os.Stderr, "[pdffetch] Fetched %s (%s, %s) to %s/%s\n",
		cfg.URL, progress.FormatBytes(result.Size), mode, cfg.Bucket, result.Object)

	return ExitSuccess
}

// buildConfig layers flag values over environment over the optional
// config file over defaults.
func buildConfig(fs *flag.FlagSet, configPath string, flags config.Config, chunkSize string) (config.Config, int) {
	cfg := config.Default()

	if configPath != "" {
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return config.Config{}, ExitInvalidArgs
		}
		cfg = fileCfg
	}

	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		return config.Config{}, ExitInvalidArgs
	}

	if chunkSize != "" {
		size, err := progress.ParseBytes(chunkSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid chunk size: %v\n", err)
			return config.Config{}, ExitInvalidArgs
		}
		flags.ChunkSize = size
	}
	if len(flags.Headers) == 0 {
		flags.Headers = nil
	}
	cfg = cfg.Merge(flags)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return config.Config{}, ExitInvalidArgs
	}

	return cfg, ExitSuccess
}

func transportOptions(cfg config.Config) transport.Options {
	return transport.Options{
		MaxIdleConnsPerHost: cfg.Workers * 2,
		Timeout:             30 * time.Second,
		RetryAttempts:       cfg.Retry.Attempts,
		RetryBackoff:        cfg.Retry.Backoff,
		RetryMaxBackoff:     cfg.Retry.MaxBackoff,
		ExtraHeaders:        netutil.CreateHeaders(true, cfg.Headers),
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// reportFetchError maps fetch errors to exit codes.
func reportFetchError(err error) int {
	var missing *netutil.MissingPDFError
	if errors.As(err, &missing) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", missing)
		return ExitMissingPDF
	}

	var unexpected *netutil.UnexpectedResponseError
	if errors.As(err, &unexpected) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", unexpected)
		return ExitUnexpectedResponse
	}

	if strings.Contains(err.Error(), "etag mismatch") {
		fmt.Fprintln(os.Stderr, "Error: Source document has changed since the last fetch attempt")
		fmt.Fprintln(os.Stderr, "Use -force to restart from scratch")
		return ExitSourceChanged
	}

	var cb *fetcher.CircuitBreakerError
	if errors.As(err, &cb) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cb)
		fmt.Fprintln(os.Stderr, "[pdffetch] Run again to resume")
		return ExitGeneralError
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return ExitGeneralError
}
