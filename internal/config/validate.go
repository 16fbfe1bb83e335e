package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownConsensusPolicies = map[string]struct{}{
	"first_decision": {},
	"majority":       {},
	"unanimous":      {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateConsensus(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServices() error {
	if strings.TrimSpace(c.Transcriber.BaseURL) == "" {
		return errors.New("transcriber.base_url must be set (create a config with 'mila config init')")
	}
	if strings.TrimSpace(c.Symbolizer.BaseURL) == "" {
		return errors.New("symbolizer.base_url must be set")
	}
	if strings.TrimSpace(c.Storage.GatewayURL) == "" {
		return errors.New("storage.gateway_url must be set")
	}
	if c.Ledger.Enabled {
		if strings.TrimSpace(c.Ledger.BaseURL) == "" {
			return errors.New("ledger.base_url must be set when ledger.enabled is true")
		}
		if strings.TrimSpace(c.Ledger.ContractAddress) == "" {
			return errors.New("ledger.contract_address must be set when ledger.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateConsensus() error {
	if _, ok := knownConsensusPolicies[c.Consensus.Policy]; !ok {
		return fmt.Errorf("consensus.policy: unknown value %q (expected first_decision, majority, or unanimous)", c.Consensus.Policy)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatTimeout > 0 && c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.JobAttempts > 10 {
		return errors.New("workflow.job_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
