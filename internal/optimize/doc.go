// Package optimize shrinks the recognized PDF. It never fails the run for
// an engine error; the worst case is a verbatim copy of its input.
package optimize
