package siren

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestModeClone verifies that Clone returns a copy and handles nil safely.
func TestModeClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Mode)(nil).Clone())

	m := &Mode{
		ID:          "flood",
		DisplayName: "Flood",
		AssetPath:   "sirens/flood.wav",
		Loop:        true,
	}

	c := m.Clone()

	require.Equal(t, m, c)
	require.NotSame(t, m, c)
}

// TestSnapshotClone verifies that Snapshot.Clone deep-copies the active mode.
func TestSnapshotClone(t *testing.T) {
	t.Parallel()

	s := Snapshot{
		Phase:        PhaseSirenActive,
		ActiveMode:   &Mode{ID: "earthquake", Loop: true},
		SelectedMode: "earthquake",
		Generation:   3,
	}

	c := s.Clone()
	require.Equal(t, s.Phase, c.Phase)
	require.Equal(t, s.Generation, c.Generation)
	require.Equal(t, s.ActiveMode, c.ActiveMode)
	require.NotSame(t, s.ActiveMode, c.ActiveMode)
}

// TestErrorKind checks taxonomy errors map to stable names, including wrapped ones.
func TestErrorKind(t *testing.T) {
	t.Parallel()

	require.Empty(t, ErrorKind(nil))
	require.Equal(t, "unknown_mode", ErrorKind(ErrUnknownMode))
	require.Equal(t, "busy", ErrorKind(ErrBusy))
	require.Equal(t, "playback_failed", ErrorKind(fmt.Errorf("player: %w", ErrPlaybackFailed)))
	require.Equal(t, "internal", ErrorKind(fmt.Errorf("boom")))
}
