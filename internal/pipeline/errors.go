package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"bindery/internal/manifest"
	"bindery/internal/validation"
)

var (
	// ErrValidation marks bad input: broken page sequences, unreadable
	// images, empty directories. Never retried automatically.
	ErrValidation = errors.New("validation error")
	// ErrStageExecution marks an external engine failure inside a stage.
	ErrStageExecution = errors.New("stage execution error")
	// ErrOrchestration marks failures outside any stage engine, like an
	// unreadable manifest or a missing book workspace.
	ErrOrchestration = errors.New("orchestration error")
)

// StageError attributes a run failure to the stage it happened in.
type StageError struct {
	Stage manifest.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the failing stage from err; ok is false when err
// carries no stage attribution.
func FailedStage(err error) (manifest.Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// Wrap tags err with a classification marker and stage context.
func Wrap(marker error, stage manifest.Stage, operation string, err error) error {
	detail := string(stage)
	if operation = strings.TrimSpace(operation); operation != "" {
		detail = detail + ": " + operation
	}
	if marker == nil {
		marker = ErrStageExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// classify picks the taxonomy marker for a raw stage failure.
func classify(stage manifest.Stage, err error) error {
	if validation.IsValidationError(err) {
		return Wrap(ErrValidation, stage, "", err)
	}
	return Wrap(ErrStageExecution, stage, "", err)
}
