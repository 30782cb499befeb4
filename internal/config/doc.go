// Package config loads the quickplan service configuration from an optional
// YAML file, a .env file and SERVICE_* environment variables, in that order
// of increasing precedence.
package config
