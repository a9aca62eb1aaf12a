// Package config loads and validates HOTAS Relay Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by HOTASRELAY_* environment variables. The loaded
// Config is validated before use; an invalid configuration prevents startup.
package config
