package chatclient

import (
	"sync"
	"sync/atomic"
	"time"
)

// poller runs the fixed-interval refresh loop for one conversation. Ticks
// are single-flight: while a fetch is still in flight the tick is skipped
// outright, never queued, so at most one poll request exists per session.
type poller struct {
	settle   time.Duration
	interval time.Duration
	fetch    func()

	fetching atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// startPoller begins polling after an initial settle delay (debounce against
// rapid conversation switching) and returns a handle whose Stop is
// idempotent.
func startPoller(settle, interval time.Duration, fetch func()) *poller {
	p := &poller{
		settle:   settle,
		interval: interval,
		fetch:    fetch,
		stopCh:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *poller) run() {
	delay := time.NewTimer(p.settle)
	defer delay.Stop()
	select {
	case <-delay.C:
	case <-p.stopCh:
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stopCh:
			return
		}
	}
}

func (p *poller) tick() {
	// Skip when the previous fetch has not resolved yet.
	if !p.fetching.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.fetching.Store(false)
		select {
		case <-p.stopCh:
			// Stray tick after Stop is a no-op.
			return
		default:
		}
		p.fetch()
	}()
}

// Stop halts the loop. Safe to call any number of times.
func (p *poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
