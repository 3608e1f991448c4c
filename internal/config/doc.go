// Package config provides configuration management for hudl-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON or YAML files
//   - Default configuration values
//   - Validation before any network activity
//   - Conversion to the options of other packages
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// 3 workers, 3 retries, 1.5-3s between requests
//	// segments go to ./downloads
//
// # Loading from File
//
//	settings, err := config.Load("game.yaml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	if err := settings.Validate(); err != nil {
//	    // errors.Is(err, config.ErrInvalidSettings)
//	}
//
// # Configuration Options
//
// Settings includes options for:
//   - The recording (CDN base, game codes, resolution, segment range)
//   - Request pacing and retry backoff windows (seconds)
//   - Worker count
//   - Output naming and merge behaviour (gaps, cleanup, overwrite)
package config
