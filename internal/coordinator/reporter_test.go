package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zainal/disaster-siren/internal/domain/siren"
)

// TestReporterCurrentIsACopy ensures readers cannot mutate coordinator state.
func TestReporterCurrentIsACopy(t *testing.T) {
	t.Parallel()

	r := NewReporter()
	r.publish(siren.Snapshot{
		Phase:      siren.PhaseSirenActive,
		ActiveMode: &siren.Mode{ID: "flood"},
	})

	a := r.Current()
	a.ActiveMode.ID = "mutated"

	b := r.Current()
	require.Equal(t, "flood", b.ActiveMode.ID)
}

// TestReporterSubscribeDeliversLatest: a slow subscriber sees the newest
// snapshot, not a backlog.
func TestReporterSubscribeDeliversLatest(t *testing.T) {
	t.Parallel()

	r := NewReporter()
	ch, cancel := r.Subscribe()

	defer cancel()

	r.publish(siren.Snapshot{Phase: siren.PhaseSirenActive, Generation: 1})
	r.publish(siren.Snapshot{Phase: siren.PhaseAnnouncing, Generation: 2})
	r.publish(siren.Snapshot{Phase: siren.PhaseIdle, Generation: 3})

	s := <-ch
	require.Equal(t, uint64(3), s.Generation)
	require.Equal(t, siren.PhaseIdle, s.Phase)
}

// TestReporterConcurrentReaders hammers Current from many goroutines while
// publishing; the race detector is the real assertion here.
func TestReporterConcurrentReaders(t *testing.T) {
	t.Parallel()

	r := NewReporter()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				_ = r.Current()
			}
		}()
	}

	for i := 0; i < 100; i++ {
		r.publish(siren.Snapshot{Phase: siren.PhaseSirenActive, Generation: uint64(i)})
	}

	wg.Wait()
}

// TestReporterCancelSubscription is safe to call twice.
func TestReporterCancelSubscription(t *testing.T) {
	t.Parallel()

	r := NewReporter()
	_, cancel := r.Subscribe()

	cancel()
	cancel()

	// Publishing after cancellation must not panic on the closed channel.
	r.publish(siren.Snapshot{Phase: siren.PhaseIdle})
}
