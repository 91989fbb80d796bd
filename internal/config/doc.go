// Package config loads, validates, and defaults the TOML configuration
// shared by the CLI, the worker, and the HTTP server.
package config
