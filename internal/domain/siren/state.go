package siren

// Phase is the coordinator's top-level operating mode.
type Phase string

const (
	// PhaseIdle means no audio is playing.
	PhaseIdle Phase = "idle"
	// PhaseSirenActive means a siren mode is looping.
	PhaseSirenActive Phase = "siren_active"
	// PhaseAnnouncing means a one-shot announcement is playing.
	PhaseAnnouncing Phase = "announcing"
)

// Mode is an immutable siren sound profile.
type Mode struct {
	// ID is the stable identifier (flood, earthquake, custom).
	ID string
	// DisplayName is the human-readable name shown in the UI.
	DisplayName string
	// AssetPath is the audio file played for this mode.
	AssetPath string
	// Loop tells whether playback restarts on natural exit.
	Loop bool
}

// Clone returns a copy of the mode. Nil-safe.
func (m *Mode) Clone() *Mode {
	if m == nil {
		return nil
	}

	cloned := *m

	return &cloned
}

// Snapshot is a read-only projection of the coordinator state at one point
// in time. It never aliases coordinator-owned memory.
type Snapshot struct {
	// Phase is the current operating mode.
	Phase Phase
	// ActiveMode is the looping mode, meaningful only while SirenActive.
	ActiveMode *Mode
	// SelectedMode is the mode the next StartStop would activate.
	SelectedMode string
	// LastError is the most recent recorded error kind, or nil.
	LastError error
	// Generation counts phase transitions since startup.
	Generation uint64
}

// Clone returns a copy of the snapshot with a deep-copied active mode.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.ActiveMode = s.ActiveMode.Clone()

	return &cloned
}
