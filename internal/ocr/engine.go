package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Artifact names produced by the recognition stage inside the stage
// directory.
const (
	OCRPDFName  = "ocr.pdf"
	SidecarName = "ocr.txt"
)

// Request carries one recognition invocation.
type Request struct {
	RawPDF   string
	OCRPDF   string
	Sidecar  string
	Language string
	Timeout  time.Duration
}

// Result reports what the engine produced.
type Result struct {
	Backend  string
	Degraded bool
}

// Engine converts an image PDF into a searchable document plus a plain
// text sidecar. Implementations must create both target files or fail.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (*Result, error)
}

// Passthrough is the degraded engine used when no recognizer is configured
// or when the error policy tolerates a recognition failure. It preserves
// the raw document and writes an empty sidecar so downstream stages keep
// their input contract.
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) Recognize(_ context.Context, req Request) (*Result, error) {
	if err := copyFile(req.RawPDF, req.OCRPDF); err != nil {
		return nil, fmt.Errorf("passthrough copy: %w", err)
	}
	if err := os.WriteFile(req.Sidecar, nil, 0o644); err != nil {
		return nil, fmt.Errorf("write empty sidecar: %w", err)
	}
	return &Result{Backend: "passthrough", Degraded: true}, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
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
