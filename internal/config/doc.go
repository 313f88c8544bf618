// Package config loads pursekeep's process configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// PURSEKEEP_* environment variables. The result is validated once at
// startup and treated as read-only afterwards.
package config
