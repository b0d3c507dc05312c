package daemon

import (
	"sync"
	"time"
)

// Poller is a cooperative single-threaded event pump. Backends queue
// callbacks with Post; whichever goroutine calls Iterate or RunForever
// executes them. Callers must serialize Iterate/RunForever themselves.
type Poller struct {
	events   chan func()
	quit     chan struct{}
	quitOnce sync.Once
}

// NewPoller creates an idle poller. Nothing runs until Iterate or
// RunForever is called.
func NewPoller() *Poller {
	return &Poller{
		events: make(chan func(), 64),
		quit:   make(chan struct{}),
	}
}

// Post queues fn for execution on the pumping goroutine. After Quit the
// callback is discarded rather than blocking the backend.
func (p *Poller) Post(fn func()) {
	select {
	case <-p.quit:
	case p.events <- fn:
	}
}

// Iterate processes one round of pending events on the calling goroutine.
// A negative timeout blocks until an event arrives, zero drains without
// blocking, and a positive timeout bounds the wait. Returns false once
// Quit has been observed.
func (p *Poller) Iterate(timeout time.Duration) bool {
	select {
	case <-p.quit:
		return false
	default:
	}

	if timeout < 0 {
		select {
		case <-p.quit:
			return false
		case fn := <-p.events:
			fn()
		}
	} else {
		var wait <-chan time.Time
		if timeout > 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			wait = t.C
		} else {
			expired := make(chan time.Time)
			close(expired)
			wait = expired
		}
		select {
		case <-p.quit:
			return false
		case fn := <-p.events:
			fn()
		case <-wait:
			return true
		}
	}

	// Drain whatever else is already queued before returning.
	for {
		select {
		case fn := <-p.events:
			fn()
		default:
			return true
		}
	}
}

// RunForever pumps events until Quit. Intended for a dedicated goroutine.
func (p *Poller) RunForever() {
	for p.Iterate(-1) {
	}
}

// Quit wakes any blocked Iterate/RunForever and makes all future pump
// calls return immediately. Safe to call more than once.
func (p *Poller) Quit() {
	p.quitOnce.Do(func() { close(p.quit) })
}

// Done reports whether Quit has been called.
func (p *Poller) Done() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}
