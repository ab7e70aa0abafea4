// Package scheduler runs delayed and periodic callbacks for one session and
// cancels them as a unit.
//
// Every callback is tagged with the group's generation at the time it was
// scheduled; Cancel bumps the generation, so a timer that already fired but
// has not yet run its action becomes a no-op.
package scheduler

import (
	"sync"
	"time"
)

// Step is one (delay, action) pair of a plan.
type Step struct {
	Delay  time.Duration
	Action func()
}

// Group owns a set of pending timers and tickers.
type Group struct {
	mu      sync.Mutex
	gen     uint64
	timers  []*time.Timer
	tickers []chan struct{}
	closed  bool
}

// New returns an empty group.
func New() *Group { return &Group{} }

// After runs fn once after d unless the group is cancelled first.
func (g *Group) After(d time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	gen := g.gen
	t := time.AfterFunc(d, func() {
		if g.live(gen) {
			fn()
		}
	})
	g.timers = append(g.timers, t)
}

// Plan schedules every step relative to now.
func (g *Group) Plan(steps ...Step) {
	for _, s := range steps {
		g.After(s.Delay, s.Action)
	}
}

// Every runs fn each interval until the group is cancelled.
func (g *Group) Every(interval time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	gen := g.gen
	stop := make(chan struct{})
	g.tickers = append(g.tickers, stop)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if !g.live(gen) {
					return
				}
				fn()
			}
		}
	}()
}

// Cancel stops everything scheduled so far. The group stays usable.
func (g *Group) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
}

// Close cancels and refuses further scheduling.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
	g.closed = true
}

// Pending reports the number of timers and tickers not yet cancelled.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers) + len(g.tickers)
}

func (g *Group) cancelLocked() {
	g.gen++
	for _, t := range g.timers {
		t.Stop()
	}
	for _, c := range g.tickers {
		close(c)
	}
	g.timers = nil
	g.tickers = nil
}

func (g *Group) live(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed && g.gen == gen
}
