// Package config loads, defaults and validates application settings from an
// optional YAML file and TASKAPI_* environment variables.
package config
