// Package manifest persists the per-book stage checkpoint document used to
// resume interrupted pipeline runs. The manifest is the single source of
// truth for which stages have durably completed, independent of job and
// book records.
package manifest
