// Package config loads Postgres connection settings for the engine adapters
// from environment variables, with sensible defaults for local development.
package config
