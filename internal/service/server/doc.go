// Package server assembles the siren appliance: configuration, mode
// registry, input aggregation, playback management, the coordinator and the
// HTTP API, wired so that every state change flows through one ordered
// command channel.
package server
