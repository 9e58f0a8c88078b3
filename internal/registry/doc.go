// Package registry maintains the table of siren modes.
//
// It resolves mode ids to audio assets, defines the cycle order, synthesizes
// missing built-in assets on startup, and atomically swaps the Custom mode's
// asset after an upload. The Custom asset path is persisted to a small YAML
// state file so uploads survive restarts.
package registry
