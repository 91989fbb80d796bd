package pipeline

import (
	"path/filepath"

	"bindery/internal/assembly"
	"bindery/internal/finalize"
	"bindery/internal/manifest"
	"bindery/internal/ocr"
	"bindery/internal/optimize"
)

// Workspace resolves the fixed file layout inside one book directory.
type Workspace struct {
	BookDir string
}

func (w Workspace) StageDir() string {
	return filepath.Join(w.BookDir, "stage")
}

func (w Workspace) OutDir() string {
	return filepath.Join(w.BookDir, finalize.OutputDirName)
}

func (w Workspace) RawPDF() string {
	return filepath.Join(w.StageDir(), assembly.RawPDFName)
}

func (w Workspace) OCRPDF() string {
	return filepath.Join(w.StageDir(), ocr.OCRPDFName)
}

func (w Workspace) Sidecar() string {
	return filepath.Join(w.StageDir(), ocr.SidecarName)
}

func (w Workspace) OptimizedPDF() string {
	return filepath.Join(w.StageDir(), optimize.OptimizedPDFName)
}

func (w Workspace) OutputPDF() string {
	return filepath.Join(w.OutDir(), finalize.OutputPDFName)
}

func (w Workspace) OutputTxt() string {
	return filepath.Join(w.OutDir(), finalize.OutputTxtName)
}

func (w Workspace) ReportJSON() string {
	return filepath.Join(w.OutDir(), finalize.ReportName)
}

func (w Workspace) ManifestPath() string {
	return manifest.Path(w.BookDir)
}
