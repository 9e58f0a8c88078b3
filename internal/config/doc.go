// Package config defines appliance settings used by the siren binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills in defaults so a minimal (or empty) settings file yields a
// fully usable configuration.
package config
