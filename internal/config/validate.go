package config

import (
	"fmt"
	"strings"
)

var optimizeModes = map[string]struct{}{
	"basic":    {},
	"balanced": {},
	"max":      {},
}

var errorPolicies = map[string]struct{}{
	"skip":  {},
	"abort": {},
}

var ocrEngines = map[string]struct{}{
	"tesseract":   {},
	"passthrough": {},
}

// ValidOptimizeMode reports whether mode is a recognized optimize level.
func ValidOptimizeMode(mode string) bool {
	_, ok := optimizeModes[strings.ToLower(strings.TrimSpace(mode))]
	return ok
}

// ValidErrorPolicy reports whether policy is a recognized OCR error policy.
func ValidErrorPolicy(policy string) bool {
	_, ok := errorPolicies[strings.ToLower(strings.TrimSpace(policy))]
	return ok
}

// Validate checks the configuration for values that cannot be defaulted away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return fmt.Errorf("config: paths.workspace_dir is required")
	}
	if !ValidOptimizeMode(c.Pipeline.OptimizeMode) {
		return fmt.Errorf("config: pipeline.optimize_mode %q is not one of basic, balanced, max", c.Pipeline.OptimizeMode)
	}
	if !ValidErrorPolicy(c.Pipeline.ErrorPolicy) {
		return fmt.Errorf("config: pipeline.error_policy %q is not one of skip, abort", c.Pipeline.ErrorPolicy)
	}
	if _, ok := ocrEngines[c.OCR.Engine]; !ok {
		return fmt.Errorf("config: ocr.engine %q is not one of tesseract, passthrough", c.OCR.Engine)
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return fmt.Errorf("config: workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return fmt.Errorf("config: workflow.error_retry_interval must be positive")
	}
	if c.Progress.SessionLimit <= 0 {
		return fmt.Errorf("config: progress.session_limit must be positive")
	}
	if c.Progress.SessionMaxSeconds <= 0 {
		return fmt.Errorf("config: progress.session_max_seconds must be positive")
	}
	if c.Progress.SampleIntervalMS <= 0 {
		return fmt.Errorf("config: progress.sample_interval_ms must be positive")
	}
	return nil
}
