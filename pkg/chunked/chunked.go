package chunked

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrChunkFilled is returned by File.Next when the chunk at the
// current index was already written in a previous session. Callers
// should continue to the next chunk.
var ErrChunkFilled = errors.New("chunk already filled")

// ChunkStatus represents the state of a chunk during a fetch.
type ChunkStatus string

const (
	// ChunkPending means the chunk has not been started yet.
	ChunkPending ChunkStatus = "pending"
	// ChunkInProgress means the chunk is currently being written.
	ChunkInProgress ChunkStatus = "in_progress"
	// ChunkCompleted means the chunk part object has been written.
	ChunkCompleted ChunkStatus = "completed"
)

// chunkState tracks one chunk in the persisted state.
// The index is implicit from the array position.
type chunkState struct {
	Status   ChunkStatus `json:"status"`
	Object   string      `json:"object,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Checksum string      `json:"checksum,omitempty"`
}

// state is persisted for resume support.
type state struct {
	TotalSize   int64             `json:"total_size"`
	ChunkSize   int64             `json:"chunk_size"`
	PartsPrefix string            `json:"parts_prefix"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Chunks      []chunkState      `json:"chunks"`
	StartedAt   time.Time         `json:"started_at"`
}

// Options configures chunked file operations.
type Options struct {
	ChunkSize       int64
	Size            int64
	Metadata        map[string]string
	ComputeChecksum bool // Compute SHA256 checksums during writes (default: true)
	StateInterval   int  // Persist state every N completed chunks
}

// Option is a functional option for configuring chunked operations.
type Option func(*Options)

// WithChunkSize sets the size of each chunk.
func WithChunkSize(size int64) Option {
	return func(o *Options) {
		o.ChunkSize = size
	}
}

// WithSize sets the total size of the document.
func WithSize(size int64) Option {
	return func(o *Options) {
		o.Size = size
	}
}

// WithMetadata sets caller-defined metadata kept in the state file.
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithChecksum enables or disables SHA256 checksum computation during
// writes. When enabled, checksums are verified again while the final
// object is assembled. Default is true.
func WithChecksum(compute bool) Option {
	return func(o *Options) {
		o.ComputeChecksum = compute
	}
}

// WithStateInterval sets how often to persist state (every N completed
// chunks).
func WithStateInterval(n int) Option {
	return func(o *Options) {
		o.StateInterval = n
	}
}

// File represents a chunked document being written.
type File struct {
	bucket      *blob.Bucket
	dest        string
	opts        Options
	partsPrefix string

	mu             sync.Mutex
	state          *state
	currentIndex   int
	completedCount int
	totalChunks    int
	closed         bool
}

// Write creates or resumes a chunked write operation. If state exists
// from a previous incomplete fetch, it is loaded for resume.
func Write(ctx context.Context, bucket *blob.Bucket, dest string, options ...Option) (*File, error) {
	opts := Options{
		StateInterval:   10,
		ComputeChecksum: true,
	}
	for _, opt := range options {
		opt(&opts)
	}

	if opts.ChunkSize <= 0 {
		return nil, errors.New("chunked: chunk size must be positive")
	}
	if opts.Size <= 0 {
		return nil, errors.New("chunked: total size must be positive")
	}

	f := &File{
		bucket:      bucket,
		dest:        dest,
		opts:        opts,
		partsPrefix: dest + ".parts/",
		totalChunks: int((opts.Size + opts.ChunkSize - 1) / opts.ChunkSize),
	}

	if err := f.loadState(ctx); err != nil {
		return nil, fmt.Errorf("chunked: load state: %w", err)
	}

	return f, nil
}

// loadState attempts to load existing state for resume.
func (f *File) loadState(ctx context.Context) error {
	data, err := f.bucket.ReadAll(ctx, f.partsPrefix+"state.json")
	if err != nil {
		if isNotExist(err) {
			f.state = f.freshState()
			return nil
		}
		return err
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}

	if s.TotalSize != f.opts.Size || s.ChunkSize != f.opts.ChunkSize {
		// geometry changed: the previous parts cannot be reused
		f.state = &s
		if err := f.resetLocked(ctx); err != nil {
			return err
		}
		return nil
	}

	f.state = &s

	// count completed chunks; in_progress chunks were interrupted and
	// go back to pending
	for i := range f.state.Chunks {
		switch f.state.Chunks[i].Status {
		case ChunkCompleted:
			f.completedCount++
		case ChunkInProgress:
			f.state.Chunks[i].Status = ChunkPending
		}
	}

	return nil
}

func (f *File) freshState() *state {
	return &state{
		TotalSize:   f.opts.Size,
		ChunkSize:   f.opts.ChunkSize,
		PartsPrefix: f.partsPrefix,
		Metadata:    f.opts.Metadata,
		Chunks:      []chunkState{},
		StartedAt:   time.Now(),
	}
}

// SaveState persists the current state for resume. Call this
// periodically from the main goroutine. Thread-safe. Lost updates are
// tolerable: the part objects in storage are the source of truth.
func (f *File) SaveState(ctx context.Context) error {
	f.mu.Lock()
	data, err := json.MarshalIndent(f.state, "", "  ")
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.bucket.WriteAll(ctx, f.partsPrefix+"state.json", data, nil)
}

// Metadata returns the metadata stored in the current state. Use this
// to check values like the source ETag when resuming.
func (f *File) Metadata() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return nil
	}
	return f.state.Metadata
}

// Reset discards existing state and part objects and starts fresh.
func (f *File) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetLocked(ctx)
}

func (f *File) resetLocked(ctx context.Context) error {
	for _, c := range f.state.Chunks {
		if c.Object != "" {
			path := f.partsPrefix + c.Object
			if err := f.bucket.Delete(ctx, path); err != nil && !isNotExist(err) {
				return fmt.Errorf("delete part %s: %w", path, err)
			}
		}
	}
	if err := f.bucket.Delete(ctx, f.partsPrefix+"state.json"); err != nil && !isNotExist(err) {
		return fmt.Errorf("delete state: %w", err)
	}

	f.state = f.freshState()
	f.currentIndex = 0
	f.completedCount = 0
	return nil
}

// Next returns the next chunk to be written.
// Returns ErrChunkFilled if the chunk was already written (resume
// case), io.EOF when all chunks have been handed out, or the context
// error if the context is cancelled.
func (f *File) Next(ctx context.Context) (*Chunk, error) {
	// check context first so chunks are not marked in_progress during
	// shutdown
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, errors.New("chunked: file is closed")
	}
	if f.currentIndex >= f.totalChunks {
		return nil, io.EOF
	}

	idx := f.currentIndex
	f.currentIndex++

	offset := int64(idx) * f.opts.ChunkSize
	length := f.opts.ChunkSize
	if offset+length > f.opts.Size {
		length = f.opts.Size - offset
	}

	chunk := &Chunk{
		file:            f,
		index:           idx,
		offset:          offset,
		length:          length,
		computeChecksum: f.opts.ComputeChecksum,
	}

	if cs := f.findChunk(idx); cs != nil {
		if cs.Status == ChunkCompleted {
			return chunk, ErrChunkFilled
		}
		cs.Status = ChunkInProgress
	} else {
		for len(f.state.Chunks) <= idx {
			f.state.Chunks = append(f.state.Chunks, chunkState{Status: ChunkPending})
		}
		f.state.Chunks[idx].Status = ChunkInProgress
	}

	return chunk, nil
}

// findChunk returns the chunk state for the given index, or nil.
// Must be called with f.mu held.
func (f *File) findChunk(idx int) *chunkState {
	if idx < len(f.state.Chunks) {
		return &f.state.Chunks[idx]
	}
	return nil
}

// Complete assembles the part objects into the final destination
// object, verifying sizes (and checksums when computed), then removes
// the parts and state.
func (f *File) Complete(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("chunked: file is already closed")
	}
	f.closed = true

	if len(f.state.Chunks) != f.totalChunks {
		f.mu.Unlock()
		return fmt.Errorf("chunked: %d of %d chunks written", len(f.state.Chunks), f.totalChunks)
	}
	for i, c := range f.state.Chunks {
		if c.Status != ChunkCompleted {
			f.mu.Unlock()
			return fmt.Errorf("chunked: chunk %d is %s, not completed", i, c.Status)
		}
	}
	chunks := make([]chunkState, len(f.state.Chunks))
	copy(chunks, f.state.Chunks)
	f.mu.Unlock()

	w, err := f.bucket.NewWriter(ctx, f.dest, nil)
	if err != nil {
		return fmt.Errorf("chunked: create writer: %w", err)
	}

	var assembled int64
	for i, c := range chunks {
		n, err := f.copyPart(ctx, w, i, c)
		if err != nil {
			w.Close()
			return err
		}
		assembled += n
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("chunked: close writer: %w", err)
	}
	if assembled != f.opts.Size {
		return fmt.Errorf("chunked: assembled %d bytes, want %d", assembled, f.opts.Size)
	}

	// best effort cleanup; leftover parts are harmless and re-deleted
	// on the next fetch to the same destination
	for _, c := range chunks {
		f.bucket.Delete(ctx, f.partsPrefix+c.Object)
	}
	f.bucket.Delete(ctx, f.partsPrefix+"state.json")

	return nil
}

// copyPart streams one part object into the destination writer,
// verifying its size and stored checksum.
func (f *File) copyPart(ctx context.Context, w io.Writer, idx int, c chunkState) (int64, error) {
	r, err := f.bucket.NewReader(ctx, f.partsPrefix+c.Object, nil)
	if err != nil {
		return 0, fmt.Errorf("chunked: open part %d: %w", idx, err)
	}
	defer r.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		return n, fmt.Errorf("chunked: copy part %d: %w", idx, err)
	}
	if n != c.Size {
		return n, fmt.Errorf("chunked: part %d is %d bytes, want %d", idx, n, c.Size)
	}
	if c.Checksum != "" {
		if sum := hex.EncodeToString(h.Sum(nil)); sum != c.Checksum {
			return n, fmt.Errorf("chunked: part %d checksum mismatch", idx)
		}
	}
	return n, nil
}

// CompletedCount returns the number of chunks that have been written.
func (f *File) CompletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completedCount
}

// CompletedBytes returns the total bytes of all completed chunks.
func (f *File) CompletedBytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, c := range f.state.Chunks {
		if c.Status == ChunkCompleted {
			total += c.Size
		}
	}
	return total
}

// TotalChunks returns the total number of chunks.
func (f *File) TotalChunks() int {
	return f.totalChunks
}

// Chunk represents a single chunk being written.
type Chunk struct {
	file            *File
	index           int
	offset          int64
	length          int64
	computeChecksum bool

	mu           sync.Mutex
	writer       *blob.Writer
	writerCancel context.CancelFunc
	hash         hash.Hash
	size         int64
	closed       bool
}

// Index returns the chunk index (0, 1, 2, ...).
func (c *Chunk) Index() int {
	return c.index
}

// Offset returns the byte offset in the source document.
func (c *Chunk) Offset() int64 {
	return c.offset
}

// Length returns the expected size of this chunk.
func (c *Chunk) Length() int64 {
	return c.length
}

func (c *Chunk) objectName() string {
	return fmt.Sprintf("part-%06d", c.index)
}

// Write writes data to the chunk's part object.
func (c *Chunk) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.New("chunked: chunk is closed")
	}

	if c.writer == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.writerCancel = cancel

		w, err := c.file.bucket.NewWriter(ctx, c.file.partsPrefix+c.objectName(), nil)
		if err != nil {
			cancel()
			return 0, fmt.Errorf("create part writer: %w", err)
		}
		c.writer = w
		if c.computeChecksum {
			c.hash = sha256.New()
		}
	}

	n, err := c.writer.Write(p)
	if err != nil {
		return n, err
	}
	if c.hash != nil {
		c.hash.Write(p[:n])
	}
	c.size += int64(n)
	return n, nil
}

// Abort cancels the chunk write and cleans up any partial part object.
// The chunk goes back to pending so it can be retried. Safe to call
// multiple times or after Close.
func (c *Chunk) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.writer != nil {
		if c.writerCancel != nil {
			c.writerCancel()
		}
		c.writer.Close()
		// some stores may have committed partial buffers before the
		// cancel took effect
		c.file.bucket.Delete(context.Background(), c.file.partsPrefix+c.objectName())
	}

	c.file.mu.Lock()
	if cs := c.file.findChunk(c.index); cs != nil {
		cs.Status = ChunkPending
	}
	c.file.mu.Unlock()
}

// Close commits the part object and updates in-memory state. It does
// not persist state to storage; call File.SaveState periodically from
// the main goroutine.
func (c *Chunk) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	// nothing was written
	if c.writer == nil {
		return nil
	}

	if err := c.writer.Close(); err != nil {
		return fmt.Errorf("close part writer: %w", err)
	}

	checksum := ""
	if c.hash != nil {
		checksum = hex.EncodeToString(c.hash.Sum(nil))
	}

	c.file.mu.Lock()
	if cs := c.file.findChunk(c.index); cs != nil {
		cs.Status = ChunkCompleted
		cs.Object = c.objectName()
		cs.Size = c.size
		cs.Checksum = checksum
	}
	c.file.completedCount++
	c.file.mu.Unlock()

	return nil
}

// isNotExist reports whether the error indicates a missing object.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
