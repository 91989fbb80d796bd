// Package pipeline sequences the five conversion stages for one book and
// drives the durable manifest checkpoint, so an interrupted run can resume
// at the first stage that never finished.
package pipeline
