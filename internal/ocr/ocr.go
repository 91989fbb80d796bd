package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bindery/internal/logging"
)

// Error policies for recognition failures. Under PolicyAbort an engine
// failure fails the run; under PolicySkip the stage degrades to the
// passthrough artifacts and the run continues.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Options configures one recognition stage run.
type Options struct {
	RawPDF      string
	StageDir    string
	Language    string
	ErrorPolicy string
	Timeout     time.Duration
	Engine      Engine
	Logger      *slog.Logger
}

// Run executes the recognition stage, producing stage/ocr.pdf and
// stage/ocr.txt. A nil engine means passthrough.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(opts.StageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stage directory: %w", err)
	}

	req := Request{
		RawPDF:   opts.RawPDF,
		OCRPDF:   filepath.Join(opts.StageDir, OCRPDFName),
		Sidecar:  filepath.Join(opts.StageDir, SidecarName),
		Language: opts.Language,
		Timeout:  opts.Timeout,
	}

	engine := opts.Engine
	if engine == nil {
		engine = Passthrough{}
	}

	result, err := engine.Recognize(ctx, req)
	if err == nil {
		if missing := missingArtifact(req); missing != "" {
			err = fmt.Errorf("engine %s completed without %s", engine.Name(), missing)
		}
	}
	if err != nil {
		if opts.ErrorPolicy != PolicySkip {
			return nil, fmt.Errorf("recognition failed: %w", err)
		}
		logger.Warn("recognition failed, degrading to passthrough",
			slog.String(logging.FieldStage, "ocr"),
			logging.Error(err))
		result, err = Passthrough{}.Recognize(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("passthrough fallback: %w", err)
		}
	}
	return result, nil
}

// SelectEngine maps a configured engine name to an implementation.
// Unknown names fall back to passthrough.
func SelectEngine(name string) Engine {
	switch name {
	case "tesseract":
		return Tesseract{}
	default:
		return Passthrough{}
	}
}

func missingArtifact(req Request) string {
	if _, err := os.Stat(req.OCRPDF); err != nil {
		return OCRPDFName
	}
	if _, err := os.Stat(req.Sidecar); err != nil {
		return SidecarName
	}
	return ""
}
