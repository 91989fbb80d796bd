// Package worker runs the single-executor job loop: claim, execute,
// reconcile terminal status, and sweep up jobs a dead process left behind.
package worker
