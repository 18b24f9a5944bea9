package clock

import (
	"sync"
	"time"
)

// TimerHandle controls a timer started by Scheduler.Interval.
type TimerHandle interface {
	// Stop cancels future ticks. Safe to call more than once.
	Stop()
}

// Scheduler is the injected "next tick" / periodic-timer collaborator.
// Spawn decouples a callback from its caller's goroutine and call
// stack. The dispatch worker each Client owns is started this way so
// that message delivery never runs inline from the socket read loop,
// preserving per-client ordering. Interval backs the keepalive
// supervisor's periodic ping.
type Scheduler interface {
	// Spawn runs task independently of the caller. The production
	// implementation runs it in its own goroutine.
	Spawn(task func())
	// Interval runs task every d until the returned handle is stopped.
	// The first tick fires after d has elapsed, not immediately.
	Interval(d time.Duration, task func()) TimerHandle
}

// Goroutine is the production Scheduler, using real goroutines and a
// time.Ticker, the same primitives a connection heartbeat or pool
// cleanup loop would use.
type Goroutine struct{}

func (Goroutine) Spawn(task func()) {
	go task()
}

func (Goroutine) Interval(d time.Duration, task func()) TimerHandle {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				task()
			}
		}
	}()
	return &tickerHandle{stop: stop}
}

type tickerHandle struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func (h *tickerHandle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}
