// Package textutil derives display titles from scan folder names.
package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleFromPath turns a source directory name into a display title.
// Separator runs collapse to single spaces and each word is title-cased,
// so "war_and-peace.scans" becomes "War And Peace Scans".
func TitleFromPath(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled Book"
	}
	base := filepath.Base(filepath.Clean(sourcePath))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Book"
	}
	return cases.Title(language.Und).String(title)
}
