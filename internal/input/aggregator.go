package input

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zainal/disaster-siren/internal/domain/siren"
	"github.com/zainal/disaster-siren/internal/logger"
	"github.com/zainal/disaster-siren/internal/metrics"
)

// Button identifies a physical button.
type Button int

const (
	// ButtonStartStop toggles the siren.
	ButtonStartStop Button = iota
	// ButtonCycleMode advances the mode pointer.
	ButtonCycleMode
)

// Edge is one debounce-raw transition of a button input.
type Edge struct {
	// Button is the input that changed level.
	Button Button
	// Pressed is true for a press edge, false for a release.
	Pressed bool
	// At is when the edge was observed.
	At time.Time
}

// PhaseFunc reports the coordinator's current phase. The aggregator uses it
// to drop mode-cycle presses outside Idle, where changing mode is forbidden.
type PhaseFunc func() siren.Phase

// Aggregator merges button edges and web submissions into one bounded,
// ordered command channel.
type Aggregator struct {
	// commands is the single ordered channel the coordinator consumes.
	commands chan siren.Command
	// hold is how long a press must stay stable to be recognized.
	hold time.Duration
	// submitTimeout bounds how long Submit blocks on a full channel.
	submitTimeout time.Duration
	// phase gates button mode-cycle presses.
	phase PhaseFunc
	// seq numbers commands for diagnostics.
	seq atomic.Uint64

	// mu protects pending.
	mu sync.Mutex
	// pending holds debounce timers for presses not yet recognized.
	pending map[Button]*time.Timer
}

// New builds an aggregator with the given channel capacity, debounce hold
// and web submit timeout.
func New(capacity int, hold, submitTimeout time.Duration, phase PhaseFunc) *Aggregator {
	if phase == nil {
		phase = func() siren.Phase { return siren.PhaseIdle }
	}

	return &Aggregator{
		commands:      make(chan siren.Command, capacity),
		hold:          hold,
		submitTimeout: submitTimeout,
		phase:         phase,
		pending:       make(map[Button]*time.Timer),
	}
}

// Commands returns the ordered command channel for the coordinator.
func (a *Aggregator) Commands() <-chan siren.Command {
	return a.commands
}

// HandleEdge consumes one raw button edge. A press is recognized only after
// the level stays stable for the hold window; a release inside the window
// cancels the pending press. Bounce storms therefore collapse to nothing.
func (a *Aggregator) HandleEdge(ctx context.Context, edge Edge) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if timer, ok := a.pending[edge.Button]; ok {
		timer.Stop()
		delete(a.pending, edge.Button)
	}

	if !edge.Pressed {
		return
	}

	button := edge.Button
	a.pending[button] = time.AfterFunc(a.hold, func() {
		a.mu.Lock()
		delete(a.pending, button)
		a.mu.Unlock()

		a.enqueueButton(ctx, button)
	})
}

// enqueueButton turns a debounced press into a command. Button commands are
// droppable: a physical retry is cheap, so a full channel or a forbidden
// phase discards the press with a log line instead of blocking a callback.
func (a *Aggregator) enqueueButton(ctx context.Context, button Button) {
	var kind siren.CommandKind

	switch button {
	case ButtonStartStop:
		kind = siren.CommandStartStop
	case ButtonCycleMode:
		if phase := a.phase(); phase != siren.PhaseIdle {
			logger.WarnKV(ctx, "Mode-cycle press dropped, not idle", "phase", phase)
			metrics.DroppedButtonCommandsTotal.Inc()

			return
		}

		kind = siren.CommandCycleMode
	default:
		logger.WarnKV(ctx, "Unknown button", "button", button)

		return
	}

	cmd := siren.Command{
		Kind:   kind,
		Source: siren.SourceButton,
		Seq:    a.seq.Add(1),
	}

	select {
	case a.commands <- cmd:
	default:
		logger.WarnKV(ctx, "Command channel full, button press dropped", "command", kind)
		metrics.DroppedButtonCommandsTotal.Inc()
	}
}

// Submit enqueues a web command and returns its correlation id. It blocks
// up to the submit timeout when the channel is saturated and then fails
// with ErrBusy; announcement commands are therefore never silently lost.
func (a *Aggregator) Submit(ctx context.Context, cmd siren.Command) (string, error) {
	cmd.Source = siren.SourceWeb
	cmd.Seq = a.seq.Add(1)
	cmd.CorrelationID = uuid.NewString()

	timer := time.NewTimer(a.submitTimeout)
	defer timer.Stop()

	select {
	case a.commands <- cmd:
		return cmd.CorrelationID, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", cmd.Kind, siren.ErrBusy)
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", cmd.Kind, ctx.Err())
	}
}

// EnqueueEvent delivers a playback event into the ordered channel. It is
// the playback manager's sink; the send blocks so completion events are
// never lost, and ctx bounds it during shutdown.
func (a *Aggregator) EnqueueEvent(ctx context.Context, cmd siren.Command) {
	cmd.Seq = a.seq.Add(1)

	select {
	case a.commands <- cmd:
	case <-ctx.Done():
		logger.WarnKV(ctx, "Shutdown discarded playback event", "command", cmd.Kind)
	}
}
