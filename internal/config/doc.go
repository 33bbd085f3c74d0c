// Package config loads the crew service configuration from a YAML or JSON
// file, applies defaults and lets STACKSCREW_* environment variables override
// any key.
package config
