package coordinator

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/zainal/disaster-siren/internal/domain/siren"
	"github.com/zainal/disaster-siren/internal/logger"
	"github.com/zainal/disaster-siren/internal/metrics"
)

// FSM event names for the phase graph.
const (
	// EventStartSiren activates the selected mode: Idle -> SirenActive.
	EventStartSiren = "event_start_siren"
	// EventStopSiren stops the loop: SirenActive -> Idle.
	EventStopSiren = "event_stop_siren"
	// EventAnnounce preempts whatever plays: Idle/SirenActive -> Announcing.
	EventAnnounce = "event_announce"
	// EventResumeSiren re-enters the preempted mode: Announcing -> SirenActive.
	EventResumeSiren = "event_resume_siren"
	// EventFinishAnnounce ends an announcement with nothing to resume:
	// Announcing -> Idle.
	EventFinishAnnounce = "event_finish_announce"
	// EventPlaybackFailed is the fail-safe: any state -> Idle.
	EventPlaybackFailed = "event_playback_failed"
)

// Playback is one live playback instance.
type Playback interface {
	Generation() uint64
}

// Player abstracts the playback manager.
type Player interface {
	Start(ctx context.Context, assetPath string, loop bool, generation uint64) (Playback, error)
	Stop(ctx context.Context, p Playback) error
}

// ModeSource abstracts the mode registry.
type ModeSource interface {
	Resolve(id string) (siren.Mode, error)
	Next(id string) siren.Mode
	Default() siren.Mode
}

// Coordinator consumes commands one at a time and drives the player.
// All fields below machine are owned exclusively by the Run goroutine.
type Coordinator struct {
	// player owns the external playback process.
	player Player
	// modes resolves and cycles siren modes.
	modes ModeSource
	// commands is the single ordered input channel.
	commands <-chan siren.Command
	// reporter receives a snapshot after every processed command.
	reporter *Reporter

	// machine is the phase authority (Idle/SirenActive/Announcing).
	machine *fsm.FSM
	// selected is the mode the next StartStop activates.
	selected string
	// active is the looping mode, set only while SirenActive.
	active *siren.Mode
	// resume is the mode preempted by an announcement, to re-enter after it.
	resume *siren.Mode
	// handle is the live playback instance, nil exactly while Idle.
	handle Playback
	// lastErr is the most recent recorded error.
	lastErr error
	// generation counts phase transitions; playback instances are tagged
	// with the generation they were started under.
	generation uint64
}

// New wires a coordinator to its collaborators. The mode pointer starts at
// the registry's default mode; every boot starts Idle by design.
func New(player Player, modes ModeSource, commands <-chan siren.Command, reporter *Reporter) *Coordinator {
	c := &Coordinator{
		player:   player,
		modes:    modes,
		commands: commands,
		reporter: reporter,
		selected: modes.Default().ID,
	}

	c.machine = fsm.NewFSM(
		string(siren.PhaseIdle),
		fsm.Events{
			{Name: EventStartSiren, Src: []string{string(siren.PhaseIdle)}, Dst: string(siren.PhaseSirenActive)},
			{Name: EventStopSiren, Src: []string{string(siren.PhaseSirenActive)}, Dst: string(siren.PhaseIdle)},
			{Name: EventAnnounce, Src: []string{string(siren.PhaseIdle), string(siren.PhaseSirenActive)}, Dst: string(siren.PhaseAnnouncing)},
			{Name: EventResumeSiren, Src: []string{string(siren.PhaseAnnouncing)}, Dst: string(siren.PhaseSirenActive)},
			{Name: EventFinishAnnounce, Src: []string{string(siren.PhaseAnnouncing)}, Dst: string(siren.PhaseIdle)},
			{Name: EventPlaybackFailed, Src: []string{
				string(siren.PhaseIdle), string(siren.PhaseSirenActive), string(siren.PhaseAnnouncing),
			}, Dst: string(siren.PhaseIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				logger.InfoKV(ctx, "Phase transition", "from", e.Src, "to", e.Dst, "event", e.Event)
				metrics.SetPhase(siren.Phase(e.Dst))
			},
		},
	)

	return c
}

// Run processes commands until the context is canceled or the channel is
// closed. On every exit path it stops any live playback handle before
// returning, so the audio device is never left open.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "coordinator")

	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx)

			return nil
		case cmd, ok := <-c.commands:
			if !ok {
				c.shutdown(ctx)

				return nil
			}

			c.process(ctx, cmd)
		}
	}
}

// Phase returns the current phase. Meant for producers that gate on it;
// prefer the Reporter for anything richer.
func (c *Coordinator) Phase() siren.Phase {
	return c.reporter.Current().Phase
}

// process applies one command. Errors are recorded and surfaced via the
// reporter; no command ever terminates the loop.
func (c *Coordinator) process(ctx context.Context, cmd siren.Command) {
	var err error

	switch cmd.Kind {
	case siren.CommandStartStop:
		err = c.handleStartStop(ctx)
	case siren.CommandCycleMode:
		err = c.handleCycleMode()
	case siren.CommandSelectMode:
		err = c.handleSelectMode(cmd.ModeID)
	case siren.CommandPlayAnnouncement:
		err = c.handleAnnounce(ctx, cmd.AssetPath)
	case siren.CommandStopAnnouncement:
		err = c.handleAnnouncementOver(ctx, true)
	case siren.CommandPlaybackEnded:
		err = c.handlePlaybackEnded(ctx, cmd)
	case siren.CommandPlaybackFailed:
		err = c.handlePlaybackFailed(ctx, cmd)
	default:
		err = fmt.Errorf("%s: %w", cmd.Kind, siren.ErrInvalidTransition)
	}

	outcome := "ok"

	if err != nil {
		outcome = siren.ErrorKind(err)
		c.lastErr = err

		logger.WarnKV(ctx, "Command rejected",
			"command", cmd.Kind, "source", cmd.Source, "seq", cmd.Seq,
			"correlation_id", cmd.CorrelationID, "error", err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(cmd.Kind), outcome).Inc()
	c.publish()
}

// handleStartStop toggles between Idle and SirenActive. During an
// announcement it is rejected: silently stopping a live PA or arming the
// siren underneath it would both be surprising.
func (c *Coordinator) handleStartStop(ctx context.Context) error {
	switch c.phase() {
	case siren.PhaseIdle:
		mode, err := c.modes.Resolve(c.selected)
		if err != nil {
			return err
		}

		handle, err := c.player.Start(ctx, mode.AssetPath, mode.Loop, c.generation+1)
		if err != nil {
			return err
		}

		c.handle = handle
		c.active = &mode

		return c.transition(ctx, EventStartSiren)
	case siren.PhaseSirenActive:
		c.stopPlayback(ctx)
		c.active = nil
		c.resume = nil

		return c.transition(ctx, EventStopSiren)
	default:
		return fmt.Errorf("start/stop while announcing: %w", siren.ErrInvalidTransition)
	}
}

// handleCycleMode advances the mode pointer. Only valid while Idle;
// changing mode mid-playback is forbidden by policy.
func (c *Coordinator) handleCycleMode() error {
	if c.phase() != siren.PhaseIdle {
		return fmt.Errorf("cycle mode while %s: %w", c.phase(), siren.ErrInvalidTransition)
	}

	c.selected = c.modes.Next(c.selected).ID

	return nil
}

// handleSelectMode sets the mode pointer to a specific id while Idle.
func (c *Coordinator) handleSelectMode(id string) error {
	if c.phase() != siren.PhaseIdle {
		return fmt.Errorf("select mode while %s: %w", c.phase(), siren.ErrInvalidTransition)
	}

	mode, err := c.modes.Resolve(id)
	if err != nil {
		return err
	}

	c.selected = mode.ID

	return nil
}

// handleAnnounce preempts any active siren with a one-shot announcement,
// remembering the prior mode so it resumes when the announcement ends.
func (c *Coordinator) handleAnnounce(ctx context.Context, assetPath string) error {
	phase := c.phase()
	if phase == siren.PhaseAnnouncing {
		return fmt.Errorf("announcement already playing: %w", siren.ErrInvalidTransition)
	}

	if phase == siren.PhaseSirenActive {
		c.resume = c.active
		c.active = nil

		c.stopPlayback(ctx)
	}

	handle, err := c.player.Start(ctx, assetPath, false, c.generation+1)
	if err != nil {
		// The siren loop is already stopped; fall silent rather than
		// leave an ambiguous state.
		c.resume = nil

		if phase == siren.PhaseSirenActive {
			if terr := c.transition(ctx, EventStopSiren); terr != nil {
				return terr
			}
		}

		return err
	}

	c.handle = handle

	return c.transition(ctx, EventAnnounce)
}

// handleAnnouncementOver ends an announcement (explicit stop or natural
// end) and re-enters the preempted siren mode, if there was one.
func (c *Coordinator) handleAnnouncementOver(ctx context.Context, stopPlayer bool) error {
	if c.phase() != siren.PhaseAnnouncing {
		return fmt.Errorf("no announcement playing: %w", siren.ErrInvalidTransition)
	}

	if stopPlayer {
		c.stopPlayback(ctx)
	} else {
		// Natural end: the manager already released the process.
		c.handle = nil
	}

	if c.resume == nil {
		return c.transition(ctx, EventFinishAnnounce)
	}

	mode := *c.resume
	c.resume = nil

	handle, err := c.player.Start(ctx, mode.AssetPath, mode.Loop, c.generation+1)
	if err != nil {
		if terr := c.transition(ctx, EventFinishAnnounce); terr != nil {
			return terr
		}

		return err
	}

	c.handle = handle
	c.active = &mode

	return c.transition(ctx, EventResumeSiren)
}

// handlePlaybackEnded processes a natural end-of-playback event. Stale
// generations are discarded: the exit belongs to a superseded instance.
func (c *Coordinator) handlePlaybackEnded(ctx context.Context, cmd siren.Command) error {
	if cmd.Generation != c.generation {
		logger.DebugKV(ctx, "Stale playback-ended event discarded",
			"event_generation", cmd.Generation, "generation", c.generation)

		return nil
	}

	if c.phase() != siren.PhaseAnnouncing {
		// Looping siren exits are restarted inside the manager and
		// never surface here.
		logger.WarnKV(ctx, "Unexpected playback end", "phase", c.phase())

		return nil
	}

	return c.handleAnnouncementOver(ctx, false)
}

// handlePlaybackFailed is the fail-safe path: record the error, drop the
// handle and fall silent in Idle.
func (c *Coordinator) handlePlaybackFailed(ctx context.Context, cmd siren.Command) error {
	if cmd.Generation != c.generation {
		logger.DebugKV(ctx, "Stale playback-failed event discarded",
			"event_generation", cmd.Generation, "generation", c.generation)

		return nil
	}

	// The manager has already confirmed the process gone.
	c.handle = nil
	c.active = nil
	c.resume = nil

	if err := c.transition(ctx, EventPlaybackFailed); err != nil {
		return err
	}

	if cmd.Err != nil {
		return cmd.Err
	}

	return siren.ErrPlaybackFailed
}

// transition fires an FSM event and bumps the generation. Legality is
// guaranteed by the callers' phase checks, so a failure here is a bug.
func (c *Coordinator) transition(ctx context.Context, event string) error {
	if err := c.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("fsm event %s: %w", event, err)
	}

	c.generation++

	return nil
}

// stopPlayback stops the live handle, tolerating there being none.
func (c *Coordinator) stopPlayback(ctx context.Context) {
	if c.handle == nil {
		return
	}

	if err := c.player.Stop(ctx, c.handle); err != nil {
		logger.ErrorKV(ctx, "Stop playback", "error", err)
	}

	c.handle = nil
}

// shutdown releases the audio device on the way out. It runs with a
// detached context so the graceful stop window is honored even when the
// parent context is already canceled.
func (c *Coordinator) shutdown(ctx context.Context) {
	logger.Info(ctx, "Coordinator shutting down")

	c.stopPlayback(context.WithoutCancel(ctx))
	c.active = nil
	c.resume = nil

	if c.phase() != siren.PhaseIdle {
		if err := c.transition(ctx, EventPlaybackFailed); err != nil {
			logger.ErrorKV(ctx, "Shutdown transition", "error", err)
		}
	}

	c.publish()
}

// phase reads the machine's current phase.
func (c *Coordinator) phase() siren.Phase {
	return siren.Phase(c.machine.Current())
}

// publish pushes a fresh snapshot to the reporter.
func (c *Coordinator) publish() {
	c.reporter.publish(siren.Snapshot{
		Phase:        c.phase(),
		ActiveMode:   c.active.Clone(),
		SelectedMode: c.selected,
		LastError:    c.lastErr,
		Generation:   c.generation,
	})
}

// IsModePlaying reports whether the given mode id is actively looping.
// Used by the registry to lock the Custom asset during playback.
func (c *Coordinator) IsModePlaying(id string) bool {
	s := c.reporter.Current()

	return s.Phase == siren.PhaseSirenActive && s.ActiveMode != nil && s.ActiveMode.ID == id
}
