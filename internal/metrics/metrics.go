// Package metrics exposes Prometheus collectors for the siren appliance.
// Collectors register on the default registry; the HTTP layer serves them
// at /metrics via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zainal/disaster-siren/internal/domain/siren"
)

//nolint:gochecknoglobals // Prometheus collectors are process-wide by design.
var (
	// Phase reports the coordinator phase as 0=idle, 1=siren_active, 2=announcing.
	Phase = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "siren_phase",
		Help: "Current coordinator phase (0=idle, 1=siren_active, 2=announcing).",
	})

	// TransitionsTotal counts processed commands by kind and outcome.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siren_commands_total",
		Help: "Commands processed by the coordinator.",
	}, []string{"command", "outcome"})

	// DroppedButtonCommandsTotal counts button commands discarded by the
	// input aggregator (debounce cancels excluded).
	DroppedButtonCommandsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siren_dropped_button_commands_total",
		Help: "Button commands dropped due to a full command channel or phase policy.",
	})

	// PlaybackRestartsTotal counts loop re-invocations of the player.
	PlaybackRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siren_playback_restarts_total",
		Help: "Loop re-invocations of the external player.",
	})

	// PlaybackFailuresTotal counts unexpected player deaths.
	PlaybackFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siren_playback_failures_total",
		Help: "Player processes that died without being asked to stop.",
	})
)

// SetPhase updates the phase gauge.
func SetPhase(p siren.Phase) {
	switch p {
	case siren.PhaseIdle:
		Phase.Set(0)
	case siren.PhaseSirenActive:
		Phase.Set(1)
	case siren.PhaseAnnouncing:
		Phase.Set(2)
	}
}
