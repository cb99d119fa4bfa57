// Package config loads the docsync YAML configuration.
//
// Files may reference environment variables with ${VAR}; they are
// expanded before parsing. Optional fields get defaults, required
// fields are validated.
package config
