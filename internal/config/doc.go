// Package config defines configuration structures for the pdffetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (PDFFETCH_ prefix)
//   - YAML configuration file
//
// Precedence is flags over environment over file over defaults.
//
// # Example file
//
//	url: https://example.com/compressed.tracemonkey-pldi-09.pdf
//	bucket: s3://my-bucket?region=us-east-1
//	workers: 8
//	chunk_size: 64KB
//	headers:
//	  Authorization: Bearer token123
//	retry:
//	  attempts: 5
//	  backoff: 1s
package config
