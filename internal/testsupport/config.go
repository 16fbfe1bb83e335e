package testsupport

import (
	"path/filepath"
	"testing"

	"mila/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Adapter URLs point at an unroutable loopback port so an accidental real
// call fails fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Transcriber.BaseURL = "http://127.0.0.1:1"
	cfg.Symbolizer.BaseURL = "http://127.0.0.1:1"
	cfg.Storage.GatewayURL = "http://127.0.0.1:1"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLedger enables the ledger section against the given gateway URL.
func WithLedger(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ledger.Enabled = true
		cfg.Ledger.BaseURL = baseURL
	}
}

// WithConsensusPolicy overrides the consensus policy name.
func WithConsensusPolicy(policy string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Consensus.Policy = policy
	}
}
