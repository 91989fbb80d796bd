package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// supportedExtensions lists the image formats accepted as page scans.
var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tiff": {},
}

var numericPrefixPattern = regexp.MustCompile(`^(\d+)`)

// PageFile is one page scan with its extracted page number.
type PageFile struct {
	Path   string
	Number int
}

// Result summarizes a validated page sequence.
type Result struct {
	Files          []PageFile
	TotalPages     int
	TotalSizeBytes int64
}

// ErrNoImages marks an input directory with no supported image files.
var ErrNoImages = errors.New("no supported images found")

// MissingPagesError reports gaps in the page number sequence.
type MissingPagesError struct {
	Pages []int
}

func (e *MissingPagesError) Error() string {
	return fmt.Sprintf("missing pages detected: %v", e.Pages)
}

// DuplicatePagesError reports page numbers shared by multiple files.
type DuplicatePagesError struct {
	Pages []int
}

func (e *DuplicatePagesError) Error() string {
	return fmt.Sprintf("duplicate pages detected: %v", e.Pages)
}

// CorruptImageError reports a file that could not be decoded as an image.
type CorruptImageError struct {
	Path string
	Err  error
}

func (e *CorruptImageError) Error() string {
	return fmt.Sprintf("corrupted or unreadable image: %s", e.Path)
}

func (e *CorruptImageError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is one of this package's input
// failures, as opposed to an environmental error like an unreadable
// directory.
func IsValidationError(err error) bool {
	var (
		missing   *MissingPagesError
		duplicate *DuplicatePagesError
		corrupt   *CorruptImageError
	)
	return errors.Is(err, ErrNoImages) ||
		errors.As(err, &missing) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &corrupt)
}

// ExtractPageNumber parses the numeric prefix of a filename stem.
func ExtractPageNumber(path string) (int, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	match := numericPrefixPattern.FindStringSubmatch(stem)
	if match == nil {
		return 0, fmt.Errorf("file has no numeric prefix: %s", filepath.Base(path))
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("parse page number in %s: %w", filepath.Base(path), err)
	}
	return number, nil
}

// ListPageFiles returns the supported image files in dir sorted by page
// number, then name. Files whose names carry no numeric prefix fail the
// listing.
func ListPageFiles(dir string) ([]PageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []PageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		number, err := ExtractPageNumber(path)
		if err != nil {
			return nil, err
		}
		files = append(files, PageFile{Path: path, Number: number})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Number != files[j].Number {
			return files[i].Number < files[j].Number
		}
		return filepath.Base(files[i].Path) < filepath.Base(files[j].Path)
	})
	return files, nil
}

// Validate checks the page sequence in dir for completeness and
// decodability and returns the ordered file set.
func Validate(dir string) (*Result, error) {
	files, err := ListPageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	if duplicates := findDuplicates(files); len(duplicates) > 0 {
		return nil, &DuplicatePagesError{Pages: duplicates}
	}
	if missing := findMissing(files); len(missing) > 0 {
		return nil, &MissingPagesError{Pages: missing}
	}

	var totalSize int64
	for _, file := range files {
		if err := verifyImage(file.Path); err != nil {
			return nil, err
		}
		info, err := os.Stat(file.Path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", file.Path, err)
		}
		totalSize += info.Size()
	}

	return &Result{
		Files:          files,
		TotalPages:     len(files),
		TotalSizeBytes: totalSize,
	}, nil
}

func findDuplicates(files []PageFile) []int {
	counts := make(map[int]int, len(files))
	for _, file := range files {
		counts[file.Number]++
	}
	var duplicates []int
	for number, count := range counts {
		if count > 1 {
			duplicates = append(duplicates, number)
		}
	}
	sort.Ints(duplicates)
	return duplicates
}

func findMissing(files []PageFile) []int {
	if len(files) == 0 {
		return nil
	}
	present := make(map[int]struct{}, len(files))
	for _, file := range files {
		present[file.Number] = struct{}{}
	}
	low, high := files[0].Number, files[len(files)-1].Number
	var missing []int
	for number := low; number <= high; number++ {
		if _, ok := present[number]; !ok {
			missing = append(missing, number)
		}
	}
	return missing
}

// verifyImage decodes the full image; imaging's codec set covers every
// extension in supportedExtensions, TIFF included.
func verifyImage(path string) error {
	if _, err := imaging.Open(path); err != nil {
		return &CorruptImageError{Path: path, Err: err}
	}
	return nil
}
