// Package file provides the configuration store backed by config.toml
// in the data directory, with AFRISAM_* environment overrides.
package file
