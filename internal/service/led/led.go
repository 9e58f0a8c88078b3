package led

import (
	"context"
	"time"

	"github.com/zainal/disaster-siren/internal/domain/siren"
	"github.com/zainal/disaster-siren/internal/logger"
)

// blinkInterval is the toggle rate while announcing.
const blinkInterval = 150 * time.Millisecond

// Driver writes the physical LED level. GPIO access is a collaborator, not
// part of this package; deployments wire a real pin driver here.
type Driver interface {
	Set(on bool) error
}

// LogDriver is the fallback driver used when no LED pin is configured.
// It records level changes at debug level.
type LogDriver struct{}

// Set logs the LED level.
func (LogDriver) Set(on bool) error {
	logger.DebugKV(context.Background(), "Status LED", "on", on)

	return nil
}

// Run projects coordinator snapshots onto the LED until ctx is done:
// solid for SirenActive, fast blink for Announcing, off for Idle.
func Run(ctx context.Context, snapshots <-chan siren.Snapshot, driver Driver) {
	ctx = logger.WithName(ctx, "led")

	var (
		phase   = siren.PhaseIdle
		blinkOn bool
		ticker  = time.NewTicker(blinkInterval)
	)

	defer ticker.Stop()
	defer setLevel(ctx, driver, false)

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-snapshots:
			if !ok {
				return
			}

			if s.Phase == phase {
				continue
			}

			phase = s.Phase

			switch phase {
			case siren.PhaseSirenActive:
				setLevel(ctx, driver, true)
			case siren.PhaseAnnouncing:
				blinkOn = true
				setLevel(ctx, driver, true)
				ticker.Reset(blinkInterval)
			case siren.PhaseIdle:
				setLevel(ctx, driver, false)
			}
		case <-ticker.C:
			if phase != siren.PhaseAnnouncing {
				continue
			}

			blinkOn = !blinkOn
			setLevel(ctx, driver, blinkOn)
		}
	}
}

// setLevel writes the level, logging failures instead of propagating them:
// a broken status LED must never take the siren down.
func setLevel(ctx context.Context, driver Driver, on bool) {
	if err := driver.Set(on); err != nil {
		logger.WarnKV(ctx, "LED write failed", "on", on, "error", err)
	}
}
