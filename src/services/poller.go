package services

import (
	"sync"
	"time"
)

// Poller owns at most one periodic ticker. Start replaces any running ticker,
// so there is never more than one live schedule.
type Poller struct {
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	starts int
}

func NewPoller() *Poller {
	return &Poller{}
}

// Start stops the current schedule, if any, and calls fn every interval
// until Stop or the next Start.
func (p *Poller) Start(interval time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if interval <= 0 {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	p.stop, p.done = stop, done
	p.starts++

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Stop is idempotent and returns once the ticker goroutine has exited.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}

// Running reports whether a schedule is live.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Starts counts how many schedules have been started over the poller's life.
func (p *Poller) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}
