package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/zainal/disaster-siren/internal/domain/siren"
	"github.com/zainal/disaster-siren/internal/logger"
	"github.com/zainal/disaster-siren/internal/metrics"
	"github.com/zainal/disaster-siren/internal/registry"
)

// Sink receives playback exit events. The coordinator wires this to its
// command channel so completions are ordered with every other command.
type Sink func(cmd siren.Command)

// Manager drives the external player. It enforces the single-handle
// invariant: a second Start while a handle is live fails with DeviceBusy.
type Manager struct {
	// runner spawns player processes.
	runner Runner
	// playerArgv is the player invocation; the asset path is appended.
	playerArgv []string
	// grace is the wait after a stop signal before a forced kill.
	grace time.Duration
	// sink receives exit events for unrequested or natural exits.
	sink Sink

	// mu protects active.
	mu sync.Mutex
	// active is the one live handle, nil when idle.
	active *Handle
	// activeCount tracks live handles; it must never exceed 1.
	activeCount atomic.Int32
}

// Handle identifies one playback instance from Start until its process has
// been confirmed gone.
type Handle struct {
	// generation tags exit events so the coordinator can discard stale ones.
	generation uint64
	// assetPath is the file being played.
	assetPath string
	// loop tells the monitor to re-invoke the player on clean exits.
	loop bool

	// mu protects proc and stopRequested.
	mu sync.Mutex
	// proc is the current player process; replaced on loop re-invocation.
	proc Process
	// stopRequested marks the handle as deliberately stopped, suppressing
	// exit events and loop restarts.
	stopRequested bool

	// done is closed once the monitor has released the handle.
	done chan struct{}
}

// Generation returns the playback instance tag.
func (h *Handle) Generation() uint64 {
	return h.generation
}

// NewManager builds a manager around the given runner and player command.
func NewManager(runner Runner, playerArgv []string, grace time.Duration, sink Sink) *Manager {
	return &Manager{
		runner:     runner,
		playerArgv: playerArgv,
		grace:      grace,
		sink:       sink,
	}
}

// Start validates the asset and spawns exactly one player invocation.
// It fails with ErrAssetUnreadable when the asset cannot be opened and
// with ErrDeviceBusy while a prior handle has not been confirmed stopped.
func (m *Manager) Start(ctx context.Context, assetPath string, loop bool, generation uint64) (*Handle, error) {
	if err := registry.ValidateAsset(assetPath); err != nil {
		return nil, err
	}

	m.mu.Lock()

	if m.active != nil {
		m.mu.Unlock()

		return nil, fmt.Errorf("handle for %s still live: %w", m.active.assetPath, siren.ErrDeviceBusy)
	}

	proc, err := m.runner.Start(ctx, append(append([]string{}, m.playerArgv...), assetPath))
	if err != nil {
		m.mu.Unlock()

		return nil, fmt.Errorf("spawn player: %w", err)
	}

	h := &Handle{
		generation: generation,
		assetPath:  assetPath,
		loop:       loop,
		proc:       proc,
		done:       make(chan struct{}),
	}

	m.active = h
	m.activeCount.Add(1)
	m.mu.Unlock()

	logger.InfoKV(ctx, "Playback started",
		"asset", assetPath, "loop", loop, "generation", generation)

	go m.monitor(ctx, h)

	return h, nil
}

// Stop terminates the handle's process: a graceful signal first, then a
// forced kill once the grace period elapses. It returns after the monitor
// has confirmed the process gone, so a subsequent Start cannot overlap.
func (m *Manager) Stop(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	alreadyStopping := h.stopRequested
	h.stopRequested = true
	proc := h.proc
	h.mu.Unlock()

	if !alreadyStopping {
		// The process may already have exited; that is fine.
		_ = proc.Signal(syscall.SIGTERM)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(m.grace):
	case <-ctx.Done():
	}

	logger.WarnKV(ctx, "Player ignored stop signal, killing",
		"asset", h.assetPath, "generation", h.generation)

	// Re-read: a loop re-invocation may have replaced the process.
	h.mu.Lock()
	proc = h.proc
	h.mu.Unlock()

	_ = proc.Kill()

	<-h.done

	return nil
}

// ActiveHandles reports the number of live handles. It is an invariant
// check: the value is always 0 or 1.
func (m *Manager) ActiveHandles() int {
	return int(m.activeCount.Load())
}

// monitor waits for process exits and turns them into events. For looping
// handles it re-invokes the player on clean exits until a stop wins.
func (m *Manager) monitor(ctx context.Context, h *Handle) {
	for {
		h.mu.Lock()
		proc := h.proc
		h.mu.Unlock()

		waitErr := proc.Wait()

		h.mu.Lock()
		stopped := h.stopRequested
		h.mu.Unlock()

		if stopped {
			// Exit was requested by the coordinator; no event.
			m.release(h)

			return
		}

		if waitErr != nil {
			metrics.PlaybackFailuresTotal.Inc()
			m.release(h)
			m.sink(siren.Command{
				Kind:       siren.CommandPlaybackFailed,
				Source:     siren.SourcePlayback,
				Generation: h.generation,
				Err:        fmt.Errorf("player exited: %w: %w", waitErr, siren.ErrPlaybackFailed),
			})

			return
		}

		if !h.loop {
			m.release(h)
			m.sink(siren.Command{
				Kind:       siren.CommandPlaybackEnded,
				Source:     siren.SourcePlayback,
				Generation: h.generation,
			})

			return
		}

		// Clean exit of a looping asset: re-invoke under the same generation.
		next, err := m.runner.Start(ctx, append(append([]string{}, m.playerArgv...), h.assetPath))
		if err != nil {
			metrics.PlaybackFailuresTotal.Inc()
			m.release(h)
			m.sink(siren.Command{
				Kind:       siren.CommandPlaybackFailed,
				Source:     siren.SourcePlayback,
				Generation: h.generation,
				Err:        fmt.Errorf("respawn player: %w: %w", err, siren.ErrPlaybackFailed),
			})

			return
		}

		metrics.PlaybackRestartsTotal.Inc()

		h.mu.Lock()
		h.proc = next

		// A stop that raced the respawn must still win.
		if h.stopRequested {
			h.mu.Unlock()
			_ = next.Kill()
			_ = next.Wait()
			m.release(h)

			return
		}

		h.mu.Unlock()
	}
}

// release retires the handle and frees the audio device for the next Start.
// Runs exactly once per handle, always before any exit event is emitted.
func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == h {
		m.active = nil
	}

	m.activeCount.Add(-1)
	close(h.done)
}
