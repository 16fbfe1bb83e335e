// Package config loads, normalizes, and validates mila's TOML
// configuration. Defaults live in defaults.go; path expansion and sample
// generation are handled here so every other package receives a fully
// resolved Config.
package config
