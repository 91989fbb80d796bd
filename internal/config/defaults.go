package config

const (
	defaultWorkspaceDir       = "~/.local/share/bindery"
	defaultAPIBind            = "127.0.0.1:7733"
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultOCREngine          = "tesseract"
	defaultOCRLanguage        = "kor+eng"
	defaultOCRTimeoutSeconds  = 120
	defaultOptimizeMode       = "basic"
	defaultErrorPolicy        = "skip"
	defaultSessionLimit       = 100
	defaultSessionMaxSeconds  = 600
	defaultSampleIntervalMS   = 200
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			APIBind:      defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		OCR: OCR{
			Engine:         defaultOCREngine,
			Language:       defaultOCRLanguage,
			TimeoutSeconds: defaultOCRTimeoutSeconds,
		},
		Pipeline: Pipeline{
			OptimizeMode: defaultOptimizeMode,
			ErrorPolicy:  defaultErrorPolicy,
		},
		Progress: Progress{
			SessionLimit:      defaultSessionLimit,
			SessionMaxSeconds: defaultSessionMaxSeconds,
			SampleIntervalMS:  defaultSampleIntervalMS,
		},
		Watcher: Watcher{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
