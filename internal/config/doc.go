// Package config loads the process configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then DAAS_* environment variables. The merged result is validated
// before any component is constructed from it.
package config
