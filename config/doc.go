// Package config loads the server configuration.
//
// Configuration lives in a YAML file at the XDG config home
// (~/.config/localops/config.yaml on Linux). Missing files fall back to
// Default(); values missing from the file keep their defaults. The loaded
// Config is treated as immutable: components copy the sections they need
// at construction time.
package config
