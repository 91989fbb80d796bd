package assembly

import (
	"fmt"

	"bindery/internal/validation"
)

// CoverError reports an invalid front or back cover selection.
type CoverError struct {
	Message string
}

func (e *CoverError) Error() string {
	return e.Message
}

// ApplyCoverOrder moves the selected pages to the front and back while
// preserving the relative order of the rest. Selection resolves through
// page numbers, so a duplicate number in the source set is rejected before
// any lookup. Nil selectors leave the sequence untouched.
func ApplyCoverOrder(pages []validation.PageFile, frontCover, backCover *int) ([]validation.PageFile, error) {
	if frontCover == nil && backCover == nil {
		out := make([]validation.PageFile, len(pages))
		copy(out, pages)
		return out, nil
	}

	byNumber := make(map[int]validation.PageFile, len(pages))
	for _, page := range pages {
		if _, exists := byNumber[page.Number]; exists {
			return nil, &CoverError{Message: fmt.Sprintf("duplicate page number %d prevents unambiguous cover selection", page.Number)}
		}
		byNumber[page.Number] = page
	}

	selected := make(map[string]struct{}, 2)
	resolve := func(number *int, label string) (*validation.PageFile, error) {
		if number == nil {
			return nil, nil
		}
		page, ok := byNumber[*number]
		if !ok {
			return nil, &CoverError{Message: fmt.Sprintf("%s page %d is not present", label, *number)}
		}
		if _, taken := selected[page.Path]; taken {
			return nil, &CoverError{Message: "front_cover and back_cover cannot point to the same page"}
		}
		selected[page.Path] = struct{}{}
		return &page, nil
	}

	front, err := resolve(frontCover, "front_cover")
	if err != nil {
		return nil, err
	}
	back, err := resolve(backCover, "back_cover")
	if err != nil {
		return nil, err
	}

	ordered := make([]validation.PageFile, 0, len(pages))
	if front != nil {
		ordered = append(ordered, *front)
	}
	for _, page := range pages {
		if _, taken := selected[page.Path]; taken {
			continue
		}
		ordered = append(ordered, page)
	}
	if back != nil {
		ordered = append(ordered, *back)
	}
	return ordered, nil
}
