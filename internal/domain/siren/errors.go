package siren

import "errors"

// Error taxonomy shared across the coordinator, playback manager, registry
// and input aggregator. Callers match with errors.Is; the HTTP layer maps
// kinds to status codes via ErrorKind.
var (
	// ErrUnknownMode is returned for unregistered mode ids.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrAssetUnreadable is returned when a mode asset cannot be opened.
	ErrAssetUnreadable = errors.New("asset unreadable")
	// ErrAssetLocked is returned when the Custom asset is replaced while
	// the Custom mode is actively playing.
	ErrAssetLocked = errors.New("asset locked")
	// ErrDeviceBusy is returned when a playback start would overlap a
	// handle that has not been confirmed stopped.
	ErrDeviceBusy = errors.New("audio device busy")
	// ErrInvalidTransition is recorded for commands that are not valid in
	// the current phase. The phase is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrPlaybackFailed is recorded when the player dies unexpectedly.
	ErrPlaybackFailed = errors.New("playback failed")
	// ErrBusy is surfaced to web callers when the command channel stays
	// saturated past the submit timeout.
	ErrBusy = errors.New("command channel busy")
)

// ErrorKind returns a stable machine-readable name for a taxonomy error,
// or "internal" for anything else. Nil yields the empty string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownMode):
		return "unknown_mode"
	case errors.Is(err, ErrAssetUnreadable):
		return "asset_unreadable"
	case errors.Is(err, ErrAssetLocked):
		return "asset_locked"
	case errors.Is(err, ErrDeviceBusy):
		return "device_busy"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPlaybackFailed):
		return "playback_failed"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}
