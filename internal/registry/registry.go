package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zainal/disaster-siren/internal/audio"
	"github.com/zainal/disaster-siren/internal/config"
	"github.com/zainal/disaster-siren/internal/domain/siren"
)

// Built-in mode ids in cycle order.
const (
	ModeFlood      = "flood"
	ModeEarthquake = "earthquake"
	ModeCustom     = "custom"
)

// ActiveFunc reports whether the given mode id is currently playing.
// The registry uses it to refuse Custom asset swaps mid-playback.
type ActiveFunc func(id string) bool

// persistedState is the YAML shape of the registry state file.
type persistedState struct {
	// CustomAssetPath is the current asset of the Custom mode.
	CustomAssetPath string `yaml:"custom_asset_path"`
}

// Registry is the table of siren modes. Mode values handed out are copies;
// the table itself is mutated only by ReplaceCustomAsset.
type Registry struct {
	// mu protects modes and state-file writes.
	mu sync.Mutex
	// modes holds the built-in modes in cycle order.
	modes []siren.Mode
	// statePath is the YAML file persisting the Custom asset path.
	statePath string
	// isActive reports whether a mode is currently playing.
	isActive ActiveFunc
}

// New builds the registry for the given audio directory, reloading a
// persisted Custom asset path if one exists and is still readable.
func New(audioDir, statePath string, isActive ActiveFunc) (*Registry, error) {
	if isActive == nil {
		isActive = func(string) bool { return false }
	}

	r := &Registry{
		modes: []siren.Mode{
			{ID: ModeFlood, DisplayName: "Flood", AssetPath: filepath.Join(audioDir, "flood.wav"), Loop: true},
			{ID: ModeEarthquake, DisplayName: "Earthquake", AssetPath: filepath.Join(audioDir, "earthquake.wav"), Loop: true},
			{ID: ModeCustom, DisplayName: "Custom", AssetPath: filepath.Join(audioDir, "custom.wav"), Loop: true},
		},
		statePath: statePath,
		isActive:  isActive,
	}

	if err := r.loadState(); err != nil {
		return nil, err
	}

	return r, nil
}

// Resolve returns the mode for the given id.
func (r *Registry) Resolve(id string) (siren.Mode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.modes {
		if m.ID == id {
			return m, nil
		}
	}

	return siren.Mode{}, fmt.Errorf("%q: %w", id, siren.ErrUnknownMode)
}

// Next returns the cyclic successor of the given mode id. Unknown ids map
// to the first mode so a stale pointer self-heals.
func (r *Registry) Next(id string) siren.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.modes {
		if m.ID == id {
			return r.modes[(i+1)%len(r.modes)]
		}
	}

	return r.modes[0]
}

// Default returns the first mode in cycle order.
func (r *Registry) Default() siren.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.modes[0]
}

// Modes returns a copy of the mode table in cycle order.
func (r *Registry) Modes() []siren.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]siren.Mode, len(r.modes))
	copy(out, r.modes)

	return out
}

// ReplaceCustomAsset swaps the Custom mode's asset path after validating
// readability. It fails with ErrAssetLocked while the Custom mode is
// playing; the coordinator must stop it before an upload can take effect.
func (r *Registry) ReplaceCustomAsset(path string) error {
	if err := ValidateAsset(path); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isActive(ModeCustom) {
		return fmt.Errorf("custom mode is playing: %w", siren.ErrAssetLocked)
	}

	for i := range r.modes {
		if r.modes[i].ID == ModeCustom {
			r.modes[i].AssetPath = path
			break
		}
	}

	return r.saveStateLocked()
}

// EnsureDefaultAssets synthesizes any missing built-in WAV files so every
// mode is activatable on first boot.
func (r *Registry) EnsureDefaultAssets() error {
	patterns := map[string][]audio.Segment{
		ModeFlood:      audio.FloodPattern,
		ModeEarthquake: audio.EarthquakePattern,
		ModeCustom:     audio.CustomPlaceholderPattern,
	}

	for _, m := range r.Modes() {
		if ValidateAsset(m.AssetPath) == nil {
			continue
		}

		if err := audio.WritePatternWAV(m.AssetPath, patterns[m.ID]); err != nil {
			return fmt.Errorf("synthesize %s asset: %w", m.ID, err)
		}
	}

	return nil
}

// ValidateAsset checks that the path resolves to a readable file.
func ValidateAsset(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("%s: %w", path, siren.ErrAssetUnreadable)
	}

	return f.Close()
}

// loadState restores a persisted Custom asset path. A missing state file or
// a path that no longer resolves falls back to the built-in default.
func (r *Registry) loadState() error {
	if r.statePath == "" {
		return nil
	}

	contents, err := os.ReadFile(filepath.Clean(r.statePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read registry state: %w", err)
	}

	var state persistedState
	if err := yaml.Unmarshal(contents, &state); err != nil {
		return fmt.Errorf("decode registry state: %w", err)
	}

	if state.CustomAssetPath == "" || ValidateAsset(state.CustomAssetPath) != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.modes {
		if r.modes[i].ID == ModeCustom {
			r.modes[i].AssetPath = state.CustomAssetPath
			break
		}
	}

	return nil
}

// saveStateLocked persists the Custom asset path. Callers hold r.mu.
func (r *Registry) saveStateLocked() error {
	if r.statePath == "" {
		return nil
	}

	var state persistedState

	for _, m := range r.modes {
		if m.ID == ModeCustom {
			state.CustomAssetPath = m.AssetPath
			break
		}
	}

	data, err := yaml.Marshal(&state)
	if err != nil {
		return fmt.Errorf("encode registry state: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(r.statePath), data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write registry state: %w", err)
	}

	return nil
}
