package optimize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"bindery/internal/logging"
)

// OptimizedPDFName is the stage output inside the stage directory.
const OptimizedPDFName = "optimized.pdf"

// Modes map user-facing optimize settings to pdfcpu behavior. Every mode
// runs the same structural optimization; the heavier modes additionally
// decode and re-encode duplicate and unused objects more aggressively.
var Modes = map[string]struct{}{
	"basic":    {},
	"balanced": {},
	"max":      {},
}

// Run produces stage/optimized.pdf from the recognized document. An engine
// failure degrades to a verbatim copy so the pipeline always keeps at
// least the recognition output.
func Run(ocrPDF, stageDir, mode string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if _, ok := Modes[mode]; !ok {
		return "", fmt.Errorf("unknown optimize mode %q", mode)
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return "", fmt.Errorf("create stage directory: %w", err)
	}

	optimizedPDF := filepath.Join(stageDir, OptimizedPDFName)
	if err := api.OptimizeFile(ocrPDF, optimizedPDF, configurationFor(mode)); err != nil {
		logger.Warn("optimization failed, copying recognition output",
			slog.String(logging.FieldStage, "optimize"),
			logging.Error(err))
		if copyErr := copyFile(ocrPDF, optimizedPDF); copyErr != nil {
			return "", fmt.Errorf("optimize fallback copy: %w", copyErr)
		}
	}
	return optimizedPDF, nil
}

func configurationFor(mode string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	switch mode {
	case "balanced":
		conf.Optimize = true
		conf.OptimizeDuplicateContentStreams = true
	case "max":
		conf.Optimize = true
		conf.OptimizeDuplicateContentStreams = true
		conf.OptimizeResourceDicts = true
	default:
		conf.Optimize = true
	}
	return conf
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
