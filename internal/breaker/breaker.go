package breaker

import (
	"sync"
	"time"
)

// Breaker is a circuit breaker per upstream host.
// - When failures reach Threshold within Window, the breaker opens for
//   OpenFor; fetches to that host are refused while open.
// - After OpenFor the breaker is half-open: exactly one probe fetch is let
//   through. A failed probe reopens immediately; a successful one closes.
// - On success, the failure counter for the host resets.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	openFor   time.Duration

	hosts map[string]*hostState
}

type hostState struct {
	failCount int
	firstFail time.Time
	openUntil time.Time
	probing   bool // half-open probe in flight
}

type Options struct {
	Threshold int
	Window    time.Duration
	OpenFor   time.Duration
}

func New(opt Options) *Breaker {
	if opt.Threshold <= 0 {
		opt.Threshold = 5
	}
	if opt.Window <= 0 {
		opt.Window = 10 * time.Second
	}
	if opt.OpenFor <= 0 {
		opt.OpenFor = 5 * time.Second
	}
	return &Breaker{
		threshold: opt.Threshold,
		window:    opt.Window,
		openFor:   opt.OpenFor,
		hosts:     make(map[string]*hostState),
	}
}

func (b *Breaker) Allow(host string) bool {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if !ok {
		return true
	}
	if s.openUntil.IsZero() {
		return true
	}
	if now.Before(s.openUntil) {
		return false
	}
	// Open period elapsed: half-open, exactly one probe goes through.
	if s.probing {
		return false
	}
	s.probing = true
	return true
}

func (b *Breaker) Success(host string) {
	b.mu.Lock()
	delete(b.hosts, host)
	b.mu.Unlock()
}

func (b *Breaker) Failure(host string) (opened bool) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if !ok {
		b.hosts[host] = &hostState{failCount: 1, firstFail: now}
		return false
	}

	// Failed half-open probe: straight back to open, no fresh count-up.
	if s.probing {
		s.probing = false
		s.openUntil = now.Add(b.openFor)
		return true
	}

	// Window expired: start a fresh count.
	if s.openUntil.IsZero() && now.Sub(s.firstFail) > b.window {
		s.failCount = 1
		s.firstFail = now
		return false
	}

	s.failCount++
	if s.failCount >= b.threshold {
		s.openUntil = now.Add(b.openFor)
		return true
	}
	return false
}
