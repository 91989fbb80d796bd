package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Tesseract recognizes text through the tesseract C library. The input PDF
// pages are extracted back to images, each page is recognized in order,
// and the concatenated text lands in the sidecar. The document itself is
// carried over unchanged; the sidecar is the searchable artifact.
type Tesseract struct{}

func (Tesseract) Name() string { return "tesseract" }

func (t Tesseract) Recognize(ctx context.Context, req Request) (*Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	pageDir, err := os.MkdirTemp("", "bindery-ocr-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create page extraction dir: %w", err)
	}
	defer os.RemoveAll(pageDir)

	if err := api.ExtractImagesFile(req.RawPDF, pageDir, nil, nil); err != nil {
		return nil, fmt.Errorf("extract pages for recognition: %w", err)
	}
	pages, err := listExtractedPages(pageDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages extracted from %s", req.RawPDF)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if languages := splitLanguages(req.Language); len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return nil, fmt.Errorf("set recognition language: %w", err)
		}
	}

	var text strings.Builder
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("recognition cancelled: %w", err)
		}
		if err := client.SetImage(page); err != nil {
			return nil, fmt.Errorf("load page %s: %w", filepath.Base(page), err)
		}
		pageText, err := client.Text()
		if err != nil {
			return nil, fmt.Errorf("recognize page %s: %w", filepath.Base(page), err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	if err := copyFile(req.RawPDF, req.OCRPDF); err != nil {
		return nil, fmt.Errorf("write recognized document: %w", err)
	}
	if err := os.WriteFile(req.Sidecar, []byte(text.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write sidecar text: %w", err)
	}
	return &Result{Backend: "tesseract"}, nil
}

func listExtractedPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read extraction dir: %w", err)
	}
	var pages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pages = append(pages, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(pages)
	return pages, nil
}

// splitLanguages turns a "kor+eng" hint into tesseract language codes.
func splitLanguages(hint string) []string {
	var languages []string
	for _, part := range strings.Split(hint, "+") {
		part = strings.TrimSpace(part)
		if part != "" {
			languages = append(languages, part)
		}
	}
	return languages
}
