package coordinator

import (
	"sync"
	"sync/atomic"

	"github.com/zainal/disaster-siren/internal/domain/siren"
)

// Reporter is a read-only projection of coordinator state. Any number of
// concurrent readers may call Current; only the coordinator publishes.
type Reporter struct {
	// snap holds the latest snapshot.
	snap atomic.Pointer[siren.Snapshot]

	// mu protects subs.
	mu sync.Mutex
	// subs are state-change subscribers (LED driver, tests).
	subs map[int]chan siren.Snapshot
	// nextID numbers subscribers.
	nextID int
}

// NewReporter starts with an Idle snapshot.
func NewReporter() *Reporter {
	r := &Reporter{
		subs: make(map[int]chan siren.Snapshot),
	}

	r.snap.Store(&siren.Snapshot{Phase: siren.PhaseIdle})

	return r
}

// Current returns a copy of the latest snapshot. Non-blocking.
func (r *Reporter) Current() siren.Snapshot {
	return *r.snap.Load().Clone()
}

// Subscribe registers for state-change notifications. Each subscriber holds
// at most the latest snapshot: a slow consumer sees fresh state, not a
// backlog. The returned function cancels the subscription.
func (r *Reporter) Subscribe() (<-chan siren.Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	ch := make(chan siren.Snapshot, 1)
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

// publish stores the snapshot and fans it out, replacing any undelivered
// older snapshot per subscriber.
func (r *Reporter) publish(s siren.Snapshot) {
	r.snap.Store(s.Clone())

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- s:
		default:
			// Drop the stale value, keep the latest.
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- s:
			default:
			}
		}
	}
}
