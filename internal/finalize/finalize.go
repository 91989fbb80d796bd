package finalize

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bindery/internal/manifest"
)

// Output artifact names inside the book's out directory.
const (
	OutputPDFName = "book.pdf"
	OutputTxtName = "book.txt"
	ReportName    = "report.json"
	OutputDirName = "out"
)

// Report is the conversion summary written next to the outputs.
type Report struct {
	BookID            string            `json:"book_id"`
	Title             string            `json:"title"`
	TotalPages        int               `json:"total_pages"`
	InputSizeBytes    int64             `json:"input_size_bytes"`
	OutputSizeBytes   int64             `json:"output_size_bytes"`
	CompressionRatio  float64           `json:"compression_ratio"`
	ProcessingSeconds float64           `json:"processing_time_sec"`
	OCRBackend        string            `json:"ocr_backend"`
	OCRDegraded       bool              `json:"ocr_degraded"`
	Settings          manifest.Settings `json:"settings"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Params carries everything the finalize stage consumes.
type Params struct {
	BookDir        string
	BookID         string
	Title          string
	OptimizedPDF   string
	SidecarText    string
	TotalPages     int
	InputSizeBytes int64
	Duration       time.Duration
	OCRBackend     string
	OCRDegraded    bool
	Settings       manifest.Settings
}

// Result lists the produced output artifacts.
type Result struct {
	OutputPDF  string
	OutputTxt  string
	ReportJSON string
}

// Run publishes the final artifacts into book_dir/out and writes the
// conversion report.
func Run(params Params) (*Result, error) {
	outDir := filepath.Join(params.BookDir, OutputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	outputPDF := filepath.Join(outDir, OutputPDFName)
	if err := copyFile(params.OptimizedPDF, outputPDF); err != nil {
		return nil, fmt.Errorf("publish document: %w", err)
	}
	outputTxt := filepath.Join(outDir, OutputTxtName)
	if err := copyFile(params.SidecarText, outputTxt); err != nil {
		return nil, fmt.Errorf("publish text: %w", err)
	}

	outputInfo, err := os.Stat(outputPDF)
	if err != nil {
		return nil, fmt.Errorf("stat output document: %w", err)
	}

	report := Report{
		BookID:            params.BookID,
		Title:             params.Title,
		TotalPages:        params.TotalPages,
		InputSizeBytes:    params.InputSizeBytes,
		OutputSizeBytes:   outputInfo.Size(),
		CompressionRatio:  compressionRatio(params.InputSizeBytes, outputInfo.Size()),
		ProcessingSeconds: params.Duration.Seconds(),
		OCRBackend:        params.OCRBackend,
		OCRDegraded:       params.OCRDegraded,
		Settings:          params.Settings,
		CreatedAt:         time.Now().UTC(),
	}

	reportPath := filepath.Join(outDir, ReportName)
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(reportPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	return &Result{
		OutputPDF:  outputPDF,
		OutputTxt:  outputTxt,
		ReportJSON: reportPath,
	}, nil
}

func compressionRatio(inputSize, outputSize int64) float64 {
	if inputSize <= 0 || outputSize <= 0 {
		return 0
	}
	return float64(outputSize) / float64(inputSize)
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
