// Package progress streams change-only job progress events sampled from
// the shared queue state, with hard bounds on session count and lifetime.
package progress
