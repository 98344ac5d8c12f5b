//go:build integration

package main

import (
	"context"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/hungpham2401/pdf.js/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	doc := testutils.TestDocument{
		Name:        "tracemonkey.pdf",
		Data:        testutils.GeneratePDF(t, 1024*1024),
		Disposition: `attachment; filename="tracemonkey-pldi-09.pdf"`,
	}

	t.Log("Starting HTTP test server...")
	server := testutils.StartDocumentServer(t, []testutils.TestDocument{doc})
	defer server.Close()

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "cli-test-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	bucket, err := minio.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	t.Run("probe", func(t *testing.T) {
		exitCode := runProbe([]string{
			"-url", server.URL + "/" + doc.Name,
			"-chunk-size", "64KB",
		})
		if exitCode != ExitSuccess {
			t.Fatalf("probe failed with exit code %d", exitCode)
		}
	})

	t.Run("fetch", func(t *testing.T) {
		exitCode := runFetch([]string{
			"-url", server.URL + "/" + doc.Name,
			"-bucket", minio.BucketURL,
			"-object", "docs/tracemonkey.pdf",
			"-workers", "4",
			"-chunk-size", "64KB",
			"-state-interval", "1",
		})
		if exitCode != ExitSuccess {
			t.Fatalf("fetch failed with exit code %d", exitCode)
		}

		testutils.CompareObject(t, ctx, bucket, "docs/tracemonkey.pdf", doc.Data)
	})

	t.Run("fetch_dest_from_disposition", func(t *testing.T) {
		exitCode := runFetch([]string{
			"-url", server.URL + "/" + doc.Name,
			"-bucket", minio.BucketURL,
			"-chunk-size", "64KB",
		})
		if exitCode != ExitSuccess {
			t.Fatalf("fetch failed with exit code %d", exitCode)
		}

		testutils.CompareObject(t, ctx, bucket, "tracemonkey-pldi-09.pdf", doc.Data)
	})

	t.Run("fetch_missing", func(t *testing.T) {
		exitCode := runFetch([]string{
			"-url", server.URL + "/no-such-document.pdf",
			"-bucket", minio.BucketURL,
			"-object", "missing.pdf",
		})
		if exitCode != ExitMissingPDF {
			t.Fatalf("expected exit code %d for missing document, got %d", ExitMissingPDF, exitCode)
		}
	})
}

func TestCLIFetchRerun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	doc := testutils.TestDocument{
		Name: "rerun.pdf",
		Data: testutils.GeneratePDF(t, 512*1024),
	}

	server := testutils.StartDocumentServer(t, []testutils.TestDocument{doc})
	defer server.Close()

	minio := testutils.StartMinioContainer(t, ctx, "rerun-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	args := []string{
		"-url", server.URL + "/" + doc.Name,
		"-bucket", minio.BucketURL,
		"-object", "rerun.pdf",
		"-workers", "2",
		"-chunk-size", "64KB",
		"-state-interval", "1",
	}

	if exitCode := runFetch(args); exitCode != ExitSuccess {
		t.Fatalf("first fetch failed with exit code %d", exitCode)
	}
	// second run overwrites the completed object
	if exitCode := runFetch(args); exitCode != ExitSuccess {
		t.Fatalf("second fetch failed with exit code %d", exitCode)
	}

	bucket, err := minio.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	testutils.CompareObject(t, ctx, bucket, "rerun.pdf", doc.Data)
}

func TestCLIInvalidArgs(t *testing.T) {
	exitCode := runFetch([]string{
		"-url", "http://example.com/doc.pdf",
		// missing -bucket
	})
	if exitCode != ExitInvalidArgs {
		t.Errorf("expected exit code %d for missing args, got %d", ExitInvalidArgs, exitCode)
	}

	exitCode = runProbe([]string{
		// missing -url
	})
	if exitCode != ExitInvalidArgs {
		t.Errorf("expected exit code %d for missing args, got %d", ExitInvalidArgs, exitCode)
	}
}
