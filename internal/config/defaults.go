package config

const (
	defaultDataDir              = "~/.local/share/mila/data"
	defaultLogDir               = "~/.local/share/mila/logs"
	defaultAPIBind              = "127.0.0.1:7910"
	defaultTranscriberModel     = "whisper-large-v3"
	defaultTranscriberTimeout   = 600
	defaultSymbolizerModel      = "atom-extract-v1"
	defaultSymbolizerTimeout    = 120
	defaultStorageGatewayURL    = "http://127.0.0.1:5001"
	defaultStorageTimeout       = 60
	defaultLedgerTimeout        = 90
	defaultCacheTTLSeconds      = 300
	defaultQueryTTLSeconds      = 60
	defaultConsensusPolicy      = "first_decision"
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultJobAttempts          = 3
	defaultRetryBackoffSeconds  = 30
	defaultStageTimeoutSeconds  = 900
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcriber: Transcriber{
			Model:          defaultTranscriberModel,
			TimeoutSeconds: defaultTranscriberTimeout,
		},
		Symbolizer: Symbolizer{
			Model:          defaultSymbolizerModel,
			TimeoutSeconds: defaultSymbolizerTimeout,
		},
		Storage: Storage{
			GatewayURL:     defaultStorageGatewayURL,
			TimeoutSeconds: defaultStorageTimeout,
		},
		Ledger: Ledger{
			TimeoutSeconds: defaultLedgerTimeout,
		},
		Cache: Cache{
			Enabled:         true,
			TTLSeconds:      defaultCacheTTLSeconds,
			QueryTTLSeconds: defaultQueryTTLSeconds,
		},
		Consensus: Consensus{
			Policy: defaultConsensusPolicy,
		},
		Workflow: Workflow{
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			JobAttempts:         defaultJobAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Review:         true,
			Validation:     true,
			Anchoring:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
