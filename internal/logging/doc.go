// Package logging builds slog loggers with console/json output and carries
// standardized book/job/stage attributes through contexts.
package logging
