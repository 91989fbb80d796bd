// Package ocr runs text recognition over the assembled raw PDF. Engines
// are injected behind a small interface so the pipeline never depends on
// which recognizer, if any, is installed.
package ocr
