// Package finalize publishes the finished document, its extracted text,
// and the conversion report into the book's out directory.
package finalize
