package assembly

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"bindery/internal/validation"
)

// RawPDFName is the assemble stage output inside the stage directory.
const RawPDFName = "raw.pdf"

// Result describes the assembled document.
type Result struct {
	RawPDF    string
	PageCount int
}

// Assemble builds stage/raw.pdf from the ordered page images in sourceDir,
// applying the optional cover reordering first.
func Assemble(sourceDir, stageDir string, frontCover, backCover *int) (*Result, error) {
	pages, err := validation.ListPageFiles(sourceDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w in %s", validation.ErrNoImages, sourceDir)
	}

	ordered, err := ApplyCoverOrder(pages, frontCover, backCover)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stage directory: %w", err)
	}

	imageFiles := make([]string, len(ordered))
	for i, page := range ordered {
		imageFiles[i] = page.Path
	}

	rawPDF := filepath.Join(stageDir, RawPDFName)
	if err := api.ImportImagesFile(nil, rawPDF, imageFiles, nil, nil); err != nil {
		return nil, fmt.Errorf("import page images: %w", err)
	}

	count, err := api.PageCountFile(rawPDF)
	if err != nil {
		return nil, fmt.Errorf("count assembled pages: %w", err)
	}

	return &Result{RawPDF: rawPDF, PageCount: count}, nil
}
