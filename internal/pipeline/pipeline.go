package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"bindery/internal/assembly"
	"bindery/internal/finalize"
	"bindery/internal/logging"
	"bindery/internal/manifest"
	"bindery/internal/ocr"
	"bindery/internal/optimize"
	"bindery/internal/validation"
)

// Params carries one pipeline execution request.
type Params struct {
	BookID     string
	Title      string
	SourcePath string
	BookDir    string
	Settings   manifest.Settings
	Resume     bool
}

// Outcome lists the artifacts of a completed run.
type Outcome struct {
	OutputPDF    string
	OutputTxt    string
	ReportJSON   string
	ManifestPath string
}

// Runner executes the five conversion stages against one book, driving the
// manifest checkpoint as it goes. It owns sequencing and error
// attribution; the stage internals live in their own packages.
type Runner struct {
	engine     ocr.Engine
	ocrTimeout time.Duration
	logger     *slog.Logger
}

// NewRunner builds a Runner with the given recognition engine. A nil
// engine degrades the ocr stage to passthrough output.
func NewRunner(engine ocr.Engine, ocrTimeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{engine: engine, ocrTimeout: ocrTimeout, logger: logger}
}

// runState accumulates values stages hand to later stages. Resumed runs
// recover skipped-stage values from the durable artifacts instead.
type runState struct {
	totalPages     int
	inputSizeBytes int64
	ocrBackend     string
	ocrDegraded    bool
	outcome        *Outcome
}

// Run executes the pipeline. resume=false reinitializes the manifest and
// starts at validate; resume=true starts at the first stage the manifest
// does not record as done. Stages run strictly in order; the first failure
// marks its stage failed, leaves current_stage on it, and aborts the run.
func (r *Runner) Run(ctx context.Context, params Params) (*Outcome, error) {
	started := time.Now()

	m, startStage, err := r.prepareManifest(params)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(
		slog.String(logging.FieldBookID, params.BookID),
		slog.String(logging.FieldComponent, "pipeline"),
	)

	state := &runState{ocrBackend: "cached"}
	ws := Workspace{BookDir: params.BookDir}

	for _, stage := range manifest.Stages() {
		if stage.Before(startStage) {
			continue
		}
		if err := m.SetStageStatus(stage, manifest.StatusRunning); err != nil {
			return nil, Wrap(ErrOrchestration, stage, "checkpoint running", err)
		}
		logger.Info("stage started", slog.String(logging.FieldStage, string(stage)))

		stageStarted := time.Now()
		if err := r.runStage(ctx, stage, params, ws, m, state, started); err != nil {
			if markErr := m.SetStageStatus(stage, manifest.StatusFailed); markErr != nil {
				logger.Error("checkpoint failed-status write failed", logging.Error(markErr))
			}
			logger.Error("stage failed",
				slog.String(logging.FieldStage, string(stage)),
				logging.Error(err))
			return nil, &StageError{Stage: stage, Err: err}
		}
		if err := m.SetStageStatus(stage, manifest.StatusDone); err != nil {
			return nil, Wrap(ErrOrchestration, stage, "checkpoint done", err)
		}
		logger.Info("stage finished",
			slog.String(logging.FieldStage, string(stage)),
			slog.Duration("elapsed", time.Since(stageStarted)))
	}

	return state.outcome, nil
}

func (r *Runner) prepareManifest(params Params) (*manifest.Manifest, manifest.Stage, error) {
	if !params.Resume || !manifest.Exists(params.BookDir) {
		m, err := manifest.Create(params.BookDir, params.BookID, params.Title, params.Settings)
		if err != nil {
			return nil, "", Wrap(ErrOrchestration, manifest.StageValidate, "create manifest", err)
		}
		return m, manifest.StageValidate, nil
	}

	m, err := manifest.Open(params.BookDir)
	if err != nil {
		return nil, "", Wrap(ErrOrchestration, manifest.StageValidate, "open manifest", err)
	}
	return m, m.ResolveResumeStage(), nil
}

func (r *Runner) runStage(
	ctx context.Context,
	stage manifest.Stage,
	params Params,
	ws Workspace,
	m *manifest.Manifest,
	state *runState,
	runStarted time.Time,
) error {
	switch stage {
	case manifest.StageValidate:
		result, err := validation.Validate(params.SourcePath)
		if err != nil {
			return classify(stage, err)
		}
		state.totalPages = result.TotalPages
		state.inputSizeBytes = result.TotalSizeBytes
		return nil

	case manifest.StageAssemble:
		result, err := assembly.Assemble(
			params.SourcePath,
			ws.StageDir(),
			params.Settings.FrontCover,
			params.Settings.BackCover,
		)
		if err != nil {
			return classify(stage, err)
		}
		state.totalPages = result.PageCount
		return nil

	case manifest.StageOCR:
		result, err := ocr.Run(ctx, ocr.Options{
			RawPDF:      ws.RawPDF(),
			StageDir:    ws.StageDir(),
			Language:    params.Settings.Language,
			ErrorPolicy: params.Settings.ErrorPolicy,
			Timeout:     r.ocrTimeout,
			Engine:      r.engine,
			Logger:      r.logger,
		})
		if err != nil {
			return Wrap(ErrStageExecution, stage, "", err)
		}
		state.ocrBackend = result.Backend
		state.ocrDegraded = result.Degraded
		return nil

	case manifest.StageOptimize:
		if _, err := optimize.Run(ws.OCRPDF(), ws.StageDir(), params.Settings.OptimizeMode, r.logger); err != nil {
			return Wrap(ErrStageExecution, stage, "", err)
		}
		return nil

	case manifest.StageFinalize:
		if err := r.fillResumedState(params, ws, state); err != nil {
			return Wrap(ErrOrchestration, stage, "recover run metrics", err)
		}
		result, err := finalize.Run(finalize.Params{
			BookDir:        params.BookDir,
			BookID:         params.BookID,
			Title:          params.Title,
			OptimizedPDF:   ws.OptimizedPDF(),
			SidecarText:    ws.Sidecar(),
			TotalPages:     state.totalPages,
			InputSizeBytes: state.inputSizeBytes,
			Duration:       time.Since(runStarted),
			OCRBackend:     state.ocrBackend,
			OCRDegraded:    state.ocrDegraded,
			Settings:       m.Settings(),
		})
		if err != nil {
			return Wrap(ErrStageExecution, stage, "", err)
		}
		state.outcome = &Outcome{
			OutputPDF:    result.OutputPDF,
			OutputTxt:    result.OutputTxt,
			ReportJSON:   result.ReportJSON,
			ManifestPath: ws.ManifestPath(),
		}
		return nil
	}
	return fmt.Errorf("unknown stage %q", stage)
}

// fillResumedState recovers metrics a resumed run skipped computing: the
// page count comes from the durable raw PDF and the input size from the
// source files' metadata. Neither re-executes a completed stage.
func (r *Runner) fillResumedState(params Params, ws Workspace, state *runState) error {
	if state.totalPages == 0 {
		count, err := api.PageCountFile(ws.RawPDF())
		if err != nil {
			return fmt.Errorf("count pages of %s: %w", ws.RawPDF(), err)
		}
		state.totalPages = count
	}
	if state.inputSizeBytes == 0 {
		files, err := validation.ListPageFiles(params.SourcePath)
		if err != nil {
			return err
		}
		for _, file := range files {
			info, err := os.Stat(file.Path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", file.Path, err)
			}
			state.inputSizeBytes += info.Size()
		}
	}
	return nil
}
