package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zainal/disaster-siren/internal/domain/siren"
)

// fakePlayback is one playback instance handed out by the fake player.
type fakePlayback struct {
	gen   uint64
	asset string
	loop  bool
}

func (p *fakePlayback) Generation() uint64 {
	return p.gen
}

// fakePlayer records starts and stops and enforces the single-handle rule.
type fakePlayer struct {
	mu sync.Mutex
	// active is the live instance, nil when silent.
	active *fakePlayback
	// started records every instance in order.
	started []*fakePlayback
	// stops counts Stop calls.
	stops int
	// startErr, when set, fails the next Start.
	startErr error
}

func (f *fakePlayer) Start(_ context.Context, assetPath string, loop bool, generation uint64) (Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		err := f.startErr
		f.startErr = nil

		return nil, err
	}

	if f.active != nil {
		return nil, fmt.Errorf("two live handles: %w", siren.ErrDeviceBusy)
	}

	p := &fakePlayback{gen: generation, asset: assetPath, loop: loop}
	f.active = p
	f.started = append(f.started, p)

	return p, nil
}

func (f *fakePlayer) Stop(_ context.Context, p Playback) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active == p {
		f.active = nil
	}

	f.stops++

	return nil
}

// crash simulates the player process dying outside the manager's control.
func (f *fakePlayer) crash() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active = nil
}

func (f *fakePlayer) current() *fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.active
}

func (f *fakePlayer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.started)
}

// fakeModes is an in-memory ModeSource with the built-in cycle order.
type fakeModes struct {
	modes []siren.Mode
}

func newFakeModes() *fakeModes {
	return &fakeModes{modes: []siren.Mode{
		{ID: "flood", DisplayName: "Flood", AssetPath: "sirens/flood.wav", Loop: true},
		{ID: "earthquake", DisplayName: "Earthquake", AssetPath: "sirens/earthquake.wav", Loop: true},
		{ID: "custom", DisplayName: "Custom", AssetPath: "sirens/custom.wav", Loop: true},
	}}
}

func (m *fakeModes) Resolve(id string) (siren.Mode, error) {
	for _, mode := range m.modes {
		if mode.ID == id {
			return mode, nil
		}
	}

	return siren.Mode{}, fmt.Errorf("%q: %w", id, siren.ErrUnknownMode)
}

func (m *fakeModes) Next(id string) siren.Mode {
	for i, mode := range m.modes {
		if mode.ID == id {
			return m.modes[(i+1)%len(m.modes)]
		}
	}

	return m.modes[0]
}

func (m *fakeModes) Default() siren.Mode {
	return m.modes[0]
}

// newTestCoordinator builds a coordinator whose commands are fed directly
// through process, keeping tests synchronous.
func newTestCoordinator() (*Coordinator, *fakePlayer, *Reporter) {
	player := new(fakePlayer)
	reporter := NewReporter()
	c := New(player, newFakeModes(), make(chan siren.Command), reporter)

	return c, player, reporter
}

func (c *Coordinator) apply(t *testing.T, kind siren.CommandKind) {
	t.Helper()
	c.process(context.Background(), siren.Command{Kind: kind, Source: siren.SourceWeb})
}

// TestStartStopAlternation walks Idle -> SirenActive -> Idle -> ... and
// checks the generation advances on every transition.
func TestStartStopAlternation(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	for i := 0; i < 3; i++ {
		c.apply(t, siren.CommandStartStop)

		s := reporter.Current()
		require.Equal(t, siren.PhaseSirenActive, s.Phase)
		require.NotNil(t, s.ActiveMode)
		require.Equal(t, "flood", s.ActiveMode.ID)
		require.Equal(t, uint64(2*i+1), s.Generation)
		require.NotNil(t, player.current())
		require.True(t, player.current().loop)

		c.apply(t, siren.CommandStartStop)

		s = reporter.Current()
		require.Equal(t, siren.PhaseIdle, s.Phase)
		require.Nil(t, s.ActiveMode)
		require.Equal(t, uint64(2*i+2), s.Generation)
		require.Nil(t, player.current())
	}
}

// TestSelectThenStartScenario is the main walkthrough: select a mode, start
// it, preempt with an announcement, let the announcement end naturally and
// verify the prior mode resumes with a fresh playback instance.
func TestSelectThenStartScenario(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	c.process(context.Background(), siren.Command{Kind: siren.CommandSelectMode, ModeID: "earthquake"})
	require.Equal(t, "earthquake", reporter.Current().SelectedMode)

	c.apply(t, siren.CommandStartStop)

	s := reporter.Current()
	require.Equal(t, siren.PhaseSirenActive, s.Phase)
	require.Equal(t, "earthquake", s.ActiveMode.ID)

	loopInstance := player.current()
	require.NotNil(t, loopInstance)

	// Announcement preempts: the loop handle is stopped, a one-shot starts.
	c.process(context.Background(), siren.Command{
		Kind:      siren.CommandPlayAnnouncement,
		AssetPath: "uploads/announce.wav",
	})

	s = reporter.Current()
	require.Equal(t, siren.PhaseAnnouncing, s.Phase)
	require.Nil(t, s.ActiveMode)

	announceInstance := player.current()
	require.NotNil(t, announceInstance)
	require.NotSame(t, loopInstance, announceInstance)
	require.False(t, announceInstance.loop)
	require.Equal(t, "uploads/announce.wav", announceInstance.asset)

	// Natural end of the announcement: the same mode resumes on a new
	// playback instance, not the old handle.
	player.crash() // process gone, manager would have released it
	c.process(context.Background(), siren.Command{
		Kind:       siren.CommandPlaybackEnded,
		Generation: announceInstance.Generation(),
	})

	s = reporter.Current()
	require.Equal(t, siren.PhaseSirenActive, s.Phase)
	require.Equal(t, "earthquake", s.ActiveMode.ID)

	resumed := player.current()
	require.NotNil(t, resumed)
	require.NotSame(t, announceInstance, resumed)
	require.NotSame(t, loopInstance, resumed)
	require.True(t, resumed.loop)
	require.Equal(t, "sirens/earthquake.wav", resumed.asset)
}

// TestStopAnnouncementResumesSameMode covers the explicit stop round-trip.
func TestStopAnnouncementResumesSameMode(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	c.apply(t, siren.CommandStartStop)
	c.process(context.Background(), siren.Command{
		Kind:      siren.CommandPlayAnnouncement,
		AssetPath: "uploads/a.wav",
	})
	require.Equal(t, siren.PhaseAnnouncing, reporter.Current().Phase)

	c.apply(t, siren.CommandStopAnnouncement)

	s := reporter.Current()
	require.Equal(t, siren.PhaseSirenActive, s.Phase)
	require.Equal(t, "flood", s.ActiveMode.ID)
	require.NotNil(t, player.current())
}

// TestAnnounceFromIdleReturnsToIdle has nothing to resume.
func TestAnnounceFromIdleReturnsToIdle(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	c.process(context.Background(), siren.Command{
		Kind:      siren.CommandPlayAnnouncement,
		AssetPath: "uploads/a.wav",
	})
	require.Equal(t, siren.PhaseAnnouncing, reporter.Current().Phase)

	c.apply(t, siren.CommandStopAnnouncement)

	require.Equal(t, siren.PhaseIdle, reporter.Current().Phase)
	require.Nil(t, player.current())
}

// TestCycleModeOnlyWhileIdle: a cycle during playback is a recorded no-op.
func TestCycleModeOnlyWhileIdle(t *testing.T) {
	t.Parallel()

	c, _, reporter := newTestCoordinator()

	c.apply(t, siren.CommandCycleMode)
	require.Equal(t, "earthquake", reporter.Current().SelectedMode)

	c.apply(t, siren.CommandStartStop)

	before := reporter.Current()

	c.apply(t, siren.CommandCycleMode)

	s := reporter.Current()
	require.Equal(t, before.Phase, s.Phase)
	require.Equal(t, before.SelectedMode, s.SelectedMode)
	require.Equal(t, before.ActiveMode, s.ActiveMode)
	require.Equal(t, before.Generation, s.Generation)
	require.ErrorIs(t, s.LastError, siren.ErrInvalidTransition)
}

// TestSelectUnknownMode records UnknownMode and stays Idle.
func TestSelectUnknownMode(t *testing.T) {
	t.Parallel()

	c, _, reporter := newTestCoordinator()

	c.process(context.Background(), siren.Command{Kind: siren.CommandSelectMode, ModeID: "unknown-id"})

	s := reporter.Current()
	require.Equal(t, siren.PhaseIdle, s.Phase)
	require.Equal(t, "flood", s.SelectedMode)
	require.ErrorIs(t, s.LastError, siren.ErrUnknownMode)
}

// TestStartStopDuringAnnouncingRejected: default-safe policy.
func TestStartStopDuringAnnouncingRejected(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	c.process(context.Background(), siren.Command{
		Kind:      siren.CommandPlayAnnouncement,
		AssetPath: "uploads/a.wav",
	})

	announce := player.current()

	c.apply(t, siren.CommandStartStop)

	s := reporter.Current()
	require.Equal(t, siren.PhaseAnnouncing, s.Phase)
	require.ErrorIs(t, s.LastError, siren.ErrInvalidTransition)
	require.Same(t, announce, player.current())
}

// TestPlaybackFailedForcesIdle: the fail-safe default is silence.
func TestPlaybackFailedForcesIdle(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	c.apply(t, siren.CommandStartStop)

	gen := reporter.Current().Generation

	player.crash()
	c.process(context.Background(), siren.Command{
		Kind:       siren.CommandPlaybackFailed,
		Generation: gen,
		Err:        fmt.Errorf("killed: %w", siren.ErrPlaybackFailed),
	})

	s := reporter.Current()
	require.Equal(t, siren.PhaseIdle, s.Phase)
	require.Nil(t, s.ActiveMode)
	require.ErrorIs(t, s.LastError, siren.ErrPlaybackFailed)
	require.Nil(t, player.current())

	// The machine keeps working afterwards.
	c.apply(t, siren.CommandStartStop)
	require.Equal(t, siren.PhaseSirenActive, reporter.Current().Phase)
}

// TestStaleCompletionDiscarded: an exit event from a superseded playback
// instance must not reset newer state.
func TestStaleCompletionDiscarded(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()

	c.apply(t, siren.CommandStartStop)
	c.process(context.Background(), siren.Command{
		Kind:      siren.CommandPlayAnnouncement,
		AssetPath: "uploads/a.wav",
	})

	staleGen := reporter.Current().Generation - 1

	before := reporter.Current()

	c.process(context.Background(), siren.Command{
		Kind:       siren.CommandPlaybackFailed,
		Generation: staleGen,
		Err:        fmt.Errorf("late exit: %w", siren.ErrPlaybackFailed),
	})

	s := reporter.Current()
	require.Equal(t, before.Phase, s.Phase)
	require.Equal(t, before.Generation, s.Generation)
	require.NotNil(t, player.current())
}

// TestStartWithUnreadableAsset stays Idle and records the error.
func TestStartWithUnreadableAsset(t *testing.T) {
	t.Parallel()

	c, player, reporter := newTestCoordinator()
	player.startErr = fmt.Errorf("sirens/flood.wav: %w", siren.ErrAssetUnreadable)

	c.apply(t, siren.CommandStartStop)

	s := reporter.Current()
	require.Equal(t, siren.PhaseIdle, s.Phase)
	require.ErrorIs(t, s.LastError, siren.ErrAssetUnreadable)
	require.Zero(t, s.Generation)
	require.Nil(t, player.current())
}

// TestRunReleasesPlaybackOnShutdown: cancellation must reach the stop
// directive before Run returns.
func TestRunReleasesPlaybackOnShutdown(t *testing.T) {
	t.Parallel()

	player := new(fakePlayer)
	reporter := NewReporter()
	commands := make(chan siren.Command, 1)
	c := New(player, newFakeModes(), commands, reporter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- c.Run(ctx)
	}()

	commands <- siren.Command{Kind: siren.CommandStartStop, Source: siren.SourceButton}

	require.Eventually(t, func() bool {
		return reporter.Current().Phase == siren.PhaseSirenActive
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	require.Nil(t, player.current())
	require.Equal(t, siren.PhaseIdle, reporter.Current().Phase)
}
