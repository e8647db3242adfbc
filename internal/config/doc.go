// Package config loads, normalizes, and validates the TOML configuration for
// the kiosk pipeline.
package config
