package chatclient

import (
	"sync"
	"time"
)

// sendController owns the single-flight send lock for one session. The lock
// is explicit state on this struct, never an ambient flag, so independent
// sessions cannot interfere with each other.
//
// Lifecycle of one attempt: idle -> sending -> idle, with a safety timer
// that force-releases the lock if the request never settles. The timer only
// releases the lock; it does not cancel the request, and a response arriving
// after it fired is still reconciled normally.
type sendController struct {
	mu         sync.Mutex
	sending    bool
	lastSendAt time.Time
	safety     *time.Timer
}

// tryAcquire takes the send lock if no attempt is in flight and at least
// minInterval has passed since the last accepted attempt. The rate-limit
// timestamp is consumed even when later validation rejects the send,
// matching the aggressive double-submit protection this guards.
func (sc *sendController) tryAcquire(minInterval time.Duration, now time.Time) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.sending {
		return false
	}
	if now.Sub(sc.lastSendAt) < minInterval {
		return false
	}
	sc.lastSendAt = now
	sc.sending = true
	return true
}

// armSafety starts the last-resort lock release.
func (sc *sendController) armSafety(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.safety != nil {
		sc.safety.Stop()
	}
	sc.safety = time.AfterFunc(d, func() {
		sc.mu.Lock()
		sc.sending = false
		sc.mu.Unlock()
	})
}

// release ends the attempt and stops the safety timer. Idempotent: it may
// run after the safety timer already released the lock.
func (sc *sendController) release() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.safety != nil {
		sc.safety.Stop()
		sc.safety = nil
	}
	sc.sending = false
}

// inFlight reports whether an attempt currently holds the lock.
func (sc *sendController) inFlight() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sending
}
