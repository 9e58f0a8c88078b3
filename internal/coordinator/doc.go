// Package coordinator implements the siren state machine.
//
// The coordinator is the single consumer of the command channel and the
// only writer of siren state: commands from buttons, the web layer and the
// playback manager are processed strictly one at a time, so no lock guards
// the state itself. Announcements preempt an active siren and the preempted
// mode resumes automatically once the announcement ends.
package coordinator
