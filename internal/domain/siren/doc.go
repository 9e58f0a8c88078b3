// Package siren contains core domain types for the siren appliance.
//
// It defines Command (one unit of work for the coordinator), Mode (a named
// sound profile), Phase (the coordinator's operating mode), Snapshot (a
// read-only projection of coordinator state) and the error taxonomy shared
// across packages.
package siren
