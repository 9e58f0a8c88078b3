package siren

// Source identifies where a command originated. It is diagnostic only;
// ordering authority is arrival order on the command channel.
type Source string

const (
	// SourceButton marks commands produced by physical buttons.
	SourceButton Source = "button"
	// SourceWeb marks commands produced by the HTTP layer.
	SourceWeb Source = "web"
	// SourcePlayback marks events produced by the playback manager.
	SourcePlayback Source = "playback"
)

// CommandKind enumerates the commands the coordinator understands.
type CommandKind string

const (
	// CommandStartStop toggles the siren between Idle and SirenActive.
	CommandStartStop CommandKind = "start_stop"
	// CommandCycleMode advances the mode pointer while Idle.
	CommandCycleMode CommandKind = "cycle_mode"
	// CommandSelectMode sets the mode pointer to a specific mode id.
	CommandSelectMode CommandKind = "select_mode"
	// CommandPlayAnnouncement starts one-shot playback of a prepared file,
	// preempting an active siren.
	CommandPlayAnnouncement CommandKind = "play_announcement"
	// CommandStopAnnouncement ends an announcement and resumes the
	// preempted siren mode, if any.
	CommandStopAnnouncement CommandKind = "stop_announcement"

	// CommandPlaybackEnded reports natural end of a one-shot playback.
	// Emitted by the playback manager, never by buttons or the web layer.
	CommandPlaybackEnded CommandKind = "playback_ended"
	// CommandPlaybackFailed reports unexpected death of the player process.
	CommandPlaybackFailed CommandKind = "playback_failed"
)

// Command is one unit of work consumed by the coordinator.
type Command struct {
	// Kind selects the operation.
	Kind CommandKind
	// Source tells which producer emitted the command.
	Source Source
	// Seq is a monotonically increasing sequence number, diagnostics only.
	Seq uint64
	// CorrelationID ties a web submission to its eventual effect.
	CorrelationID string
	// ModeID is the target mode for SelectMode.
	ModeID string
	// AssetPath is the ready-to-play file for PlayAnnouncement.
	AssetPath string
	// Generation tags playback events with the playback instance that
	// produced them so stale completions can be discarded.
	Generation uint64
	// Err carries the failure detail for PlaybackFailed.
	Err error
}
