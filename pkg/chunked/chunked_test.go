package chunked

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
)

func openTestBucket(t *testing.T, ctx context.Context) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// writeAll drains Next and writes the matching slice of data into each
// chunk.
func writeAll(t *testing.T, ctx context.Context, f *File, data []byte) int {
	t.Helper()
	written := 0
	for {
		chunk, err := f.Next(ctx)
		if err == io.EOF {
			break
		}
		if err == ErrChunkFilled {
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}

		start := chunk.Offset()
		end := start + chunk.Length()
		if _, err := chunk.Write(data[start:end]); err != nil {
			t.Fatalf("chunk.Write: %v", err)
		}
		if err := chunk.Close(); err != nil {
			t.Fatalf("chunk.Close: %v", err)
		}
		written++
	}
	return written
}

func TestWriteAndComplete(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	data := testData(256 * 1024)
	chunkSize := int64(64 * 1024) // 4 chunks

	f, err := Write(ctx, bucket, "docs/file.pdf",
		WithChunkSize(chunkSize),
		WithSize(int64(len(data))),
		WithMetadata(map[string]string{"source_url": "https://example.com/file.pdf"}),
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if f.TotalChunks() != 4 {
		t.Fatalf("TotalChunks = %d, want 4", f.TotalChunks())
	}
	if got := writeAll(t, ctx, f, data); got != 4 {
		t.Fatalf("wrote %d chunks, want 4", got)
	}

	if err := f.Complete(ctx); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// final object holds the assembled document
	result, err := bucket.ReadAll(ctx, "docs/file.pdf")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(result, data) {
		t.Fatalf("data mismatch: got %d bytes, want %d", len(result), len(data))
	}

	// parts and state are cleaned up
	for _, leftover := range []string{
		"docs/file.pdf.parts/part-000000",
		"docs/file.pdf.parts/state.json",
	} {
		if exists, _ := bucket.Exists(ctx, leftover); exists {
			t.Errorf("%s still exists after Complete", leftover)
		}
	}
}

func TestUnevenLastChunk(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	data := testData(100*1024 + 100)
	f, err := Write(ctx, bucket, "docs/uneven.pdf",
		WithChunkSize(64*1024),
		WithSize(int64(len(data))),
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	writeAll(t, ctx, f, data)
	if err := f.Complete(ctx); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	result, err := bucket.ReadAll(ctx, "docs/uneven.pdf")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(result, data) {
		t.Fatal("data mismatch")
	}
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	data := testData(256 * 1024)
	chunkSize := int64(64 * 1024)

	// first session: two chunks, then simulated interruption
	f1, err := Write(ctx, bucket, "docs/resume.pdf",
		WithChunkSize(chunkSize),
		WithSize(int64(len(data))),
	)
	if err != nil {
		t.Fatalf("Write (first): %v", err)
	}

	for i := 0; i < 2; i++ {
		chunk, err := f1.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		start := chunk.Offset()
		chunk.Write(data[start : start+chunk.Length()])
		chunk.Close()
	}
	if err := f1.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	// second session resumes
	f2, err := Write(ctx, bucket, "docs/resume.pdf",
		WithChunkSize(chunkSize),
		WithSize(int64(len(data))),
	)
	if err != nil {
		t.Fatalf("Write (second): %v", err)
	}

	if f2.CompletedCount() != 2 {
		t.Fatalf("CompletedCount = %d, want 2", f2.CompletedCount())
	}

	filled := 0
	written := 0
	for {
		chunk, err := f2.Next(ctx)
		if err == io.EOF {
			break
		}
		if err == ErrChunkFilled {
			filled++
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		start := chunk.Offset()
		chunk.Write(data[start : start+chunk.Length()])
		chunk.Close()
		written++
	}

	if filled != 2 || written != 2 {
		t.Fatalf("filled=%d written=%d, want 2 and 2", filled, written)
	}

	if err := f2.Complete(ctx); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	result, err := bucket.ReadAll(ctx, "docs/resume.pdf")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(result, data) {
		t.Fatal("data mismatch after resume")
	}
}

func TestCompleteRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	f, err := Write(ctx, bucket, "docs/partial.pdf",
		WithChunkSize(64*1024),
		WithSize(256*1024),
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	chunk, err := f.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	chunk.Write(testData(64 * 1024))
	chunk.Close()

	if err := f.Complete(ctx); err == nil {
		t.Fatal("Complete succeeded with missing chunks")
	}
}

func TestChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	data := testData(128 * 1024)
	f, err := Write(ctx, bucket, "docs/corrupt.pdf",
		WithChunkSize(32*1024),
		WithSize(int64(len(data))),
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	writeAll(t, ctx, f, data)

	// corrupt one part behind the file's back, same size
	garbage := make([]byte, 32*1024)
	if err := bucket.WriteAll(ctx, "docs/corrupt.pdf.parts/part-000001", garbage, nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	err = f.Complete(ctx)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("Complete = %v, want checksum mismatch", err)
	}
}

func TestAbortRetriesChunk(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	data := testData(128 * 1024)
	f, err := Write(ctx, bucket, "docs/abort.pdf",
		WithChunkSize(64*1024),
		WithSize(int64(len(data))),
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	chunk, err := f.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	chunk.Write(data[:100]) // partial write
	chunk.Abort()

	// aborted chunk is pending again; a fresh session sees no
	// completed work for it
	if f.CompletedCount() != 0 {
		t.Fatalf("CompletedCount = %d, want 0", f.CompletedCount())
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	data := testData(128 * 1024)
	f, err := Write(ctx, bucket, "docs/reset.pdf",
		WithChunkSize(64*1024),
		WithSize(int64(len(data))),
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	chunk, _ := f.Next(ctx)
	chunk.Write(data[:64*1024])
	chunk.Close()

	if err := f.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if f.CompletedCount() != 0 {
		t.Fatalf("CompletedCount = %d after reset, want 0", f.CompletedCount())
	}
	if exists, _ := bucket.Exists(ctx, "docs/reset.pdf.parts/part-000000"); exists {
		t.Error("part object survived reset")
	}
}

func TestWriteRejectsBadOptions(t *testing.T) {
	ctx := context.Background()
	bucket := openTestBucket(t, ctx)

	if _, err := Write(ctx, bucket, "x", WithSize(100)); err == nil {
		t.Error("expected error for missing chunk size")
	}
	if _, err := Write(ctx, bucket, "x", WithChunkSize(100)); err == nil {
		t.Error("expected error for missing size")
	}
}
