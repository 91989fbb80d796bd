// Package validation checks a directory of scanned page images before any
// pipeline stage touches it: every file must carry a numeric page prefix,
// the sequence must be gap and duplicate free, and every image must decode.
package validation
