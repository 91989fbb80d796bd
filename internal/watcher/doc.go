// Package watcher auto-imports scan folders dropped into the inbox
// directory, registering each as a pending book.
package watcher
