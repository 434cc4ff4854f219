package main

import "time"

// drawScheduler is a room's automatic call timer. It lives on the room actor:
// the timer callback only enqueues a tick tagged with the arming generation,
// and the actor drops ticks from a generation that was since disarmed.
type drawScheduler struct {
	interval time.Duration
	fire     func(gen uint64)

	timer *time.Timer
	gen   uint64
}

func newDrawScheduler(interval time.Duration, fire func(gen uint64)) *drawScheduler {
	return &drawScheduler{interval: interval, fire: fire}
}

// arm starts the cadence. It is a no-op while already armed or when
// automatic calling is disabled.
func (s *drawScheduler) arm() bool {
	if s.interval <= 0 || s.timer != nil {
		return false
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() { s.fire(gen) })
	return true
}

// due reports whether a tick from gen should still draw.
func (s *drawScheduler) due(gen uint64) bool {
	return s.timer != nil && gen == s.gen
}

// next schedules the following tick of the current generation.
func (s *drawScheduler) next() {
	if s.timer != nil {
		s.timer.Reset(s.interval)
	}
}

// disarm stops the cadence. It is a no-op when not armed.
func (s *drawScheduler) disarm() bool {
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
	return true
}

func (s *drawScheduler) armed() bool { return s.timer != nil }
