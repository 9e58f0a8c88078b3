// Package playback owns the lifecycle of the external audio player.
//
// At most one player process exists at a time. Looping is implemented as
// re-invocation on natural exit rather than a player-native loop flag, so
// any asset format the player understands can loop. Exits are reported to
// the coordinator as generation-tagged command-channel events.
package playback
