// Package server is the HTTP surface: book registration and settings,
// job creation and control, output downloads, and the live progress
// stream rendered as server-sent events.
package server
