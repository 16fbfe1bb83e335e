package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServices()
	c.normalizeConsensus()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeServices() {
	c.Transcriber.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcriber.BaseURL), "/")
	if c.Transcriber.APIKey == "" {
		c.Transcriber.APIKey = strings.TrimSpace(os.Getenv("MILA_TRANSCRIBER_API_KEY"))
	}
	if c.Transcriber.TimeoutSeconds <= 0 {
		c.Transcriber.TimeoutSeconds = defaultTranscriberTimeout
	}

	c.Symbolizer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Symbolizer.BaseURL), "/")
	if c.Symbolizer.APIKey == "" {
		c.Symbolizer.APIKey = strings.TrimSpace(os.Getenv("MILA_SYMBOLIZER_API_KEY"))
	}
	if c.Symbolizer.TimeoutSeconds <= 0 {
		c.Symbolizer.TimeoutSeconds = defaultSymbolizerTimeout
	}

	c.Storage.GatewayURL = strings.TrimRight(strings.TrimSpace(c.Storage.GatewayURL), "/")
	if c.Storage.TimeoutSeconds <= 0 {
		c.Storage.TimeoutSeconds = defaultStorageTimeout
	}

	c.Ledger.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ledger.BaseURL), "/")
	c.Ledger.ContractAddress = strings.TrimSpace(c.Ledger.ContractAddress)
	if c.Ledger.TimeoutSeconds <= 0 {
		c.Ledger.TimeoutSeconds = defaultLedgerTimeout
	}
}

func (c *Config) normalizeConsensus() {
	c.Consensus.Policy = strings.ToLower(strings.TrimSpace(c.Consensus.Policy))
	if c.Consensus.Policy == "" {
		c.Consensus.Policy = defaultConsensusPolicy
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.JobAttempts <= 0 {
		c.Workflow.JobAttempts = defaultJobAttempts
	}
	if c.Workflow.RetryBackoffSeconds <= 0 {
		c.Workflow.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
