// Package ioutils provides file system utilities for the downloader.
//
// This package contains functions for:
//   - File writing
//   - Filename sanitization for cross-platform compatibility
//   - Idempotent directory creation
//   - Bulk removal of intermediate files
//
// # File Operations
//
//	// Ensure the downloads directory exists (no error if it already does)
//	err := ioutils.EnsureDir("downloads")
//
//	// Remove merged segments, tolerating ones that are already gone
//	err = ioutils.RemoveFiles(paths...)
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("Wildcats: Home/Away") // "Wildcats_ Home_Away"
package ioutils
