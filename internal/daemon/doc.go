// Package daemon hosts the long-running mila process: it owns the
// single-instance lock, runs the processing pipeline, and serves the
// HTTP API used by submitters, validators, and the CLI.
package daemon
