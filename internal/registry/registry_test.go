package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zainal/disaster-siren/internal/domain/siren"
)

// writeAsset creates a small readable file standing in for a WAV asset.
func writeAsset(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))

	return path
}

// newTestRegistry builds a registry over a temp dir with all assets present.
func newTestRegistry(t *testing.T, isActive ActiveFunc) (*Registry, string) {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"flood.wav", "earthquake.wav", "custom.wav"} {
		writeAsset(t, dir, name)
	}

	r, err := New(dir, filepath.Join(dir, "registry.yaml"), isActive)
	require.NoError(t, err)

	return r, dir
}

// TestResolve checks known and unknown mode ids.
func TestResolve(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t, nil)

	m, err := r.Resolve(ModeFlood)
	require.NoError(t, err)
	require.Equal(t, "Flood", m.DisplayName)
	require.True(t, m.Loop)

	_, err = r.Resolve("unknown-id")
	require.ErrorIs(t, err, siren.ErrUnknownMode)
}

// TestNextCyclesInOrder verifies the flood -> earthquake -> custom -> flood cycle.
func TestNextCyclesInOrder(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t, nil)

	require.Equal(t, ModeEarthquake, r.Next(ModeFlood).ID)
	require.Equal(t, ModeCustom, r.Next(ModeEarthquake).ID)
	require.Equal(t, ModeFlood, r.Next(ModeCustom).ID)

	// Stale pointer self-heals to the first mode.
	require.Equal(t, ModeFlood, r.Next("gone").ID)
}

// TestReplaceCustomAsset covers the swap, the lock while playing, and
// rejection of unreadable files.
func TestReplaceCustomAsset(t *testing.T) {
	t.Parallel()

	active := false
	r, dir := newTestRegistry(t, func(id string) bool { return active && id == ModeCustom })

	// Unreadable replacement.
	err := r.ReplaceCustomAsset(filepath.Join(dir, "missing.wav"))
	require.ErrorIs(t, err, siren.ErrAssetUnreadable)

	// Locked while the custom mode plays.
	replacement := writeAsset(t, dir, "uploaded.wav")
	active = true

	err = r.ReplaceCustomAsset(replacement)
	require.ErrorIs(t, err, siren.ErrAssetLocked)

	// Swap succeeds once playback stopped.
	active = false

	require.NoError(t, r.ReplaceCustomAsset(replacement))

	m, err := r.Resolve(ModeCustom)
	require.NoError(t, err)
	require.Equal(t, replacement, m.AssetPath)
}

// TestCustomAssetPersists ensures the swapped path survives a registry reload.
func TestCustomAssetPersists(t *testing.T) {
	t.Parallel()

	r, dir := newTestRegistry(t, nil)
	replacement := writeAsset(t, dir, "uploaded.wav")

	require.NoError(t, r.ReplaceCustomAsset(replacement))

	reloaded, err := New(dir, filepath.Join(dir, "registry.yaml"), nil)
	require.NoError(t, err)

	m, err := reloaded.Resolve(ModeCustom)
	require.NoError(t, err)
	require.Equal(t, replacement, m.AssetPath)
}

// TestEnsureDefaultAssets synthesizes missing built-in WAVs.
func TestEnsureDefaultAssets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	r, err := New(dir, "", nil)
	require.NoError(t, err)

	// All assets missing: every mode activation would fail.
	for _, m := range r.Modes() {
		require.ErrorIs(t, ValidateAsset(m.AssetPath), siren.ErrAssetUnreadable)
	}

	require.NoError(t, r.EnsureDefaultAssets())

	for _, m := range r.Modes() {
		require.NoError(t, ValidateAsset(m.AssetPath))
	}
}
