// Package audio generates the built-in siren WAV assets and converts
// uploaded audio into the player-friendly WAV format via ffmpeg.
package audio
