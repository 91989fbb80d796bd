// Package queue persists books and jobs in SQLite and implements the
// atomic claim protocol the worker relies on. Claiming is a single
// conditional update, which is what makes multiple pollers against one
// database safe without in-process locks.
package queue
