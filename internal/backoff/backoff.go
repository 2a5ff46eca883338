// Package backoff implements a capped exponential back-off used to
// pace reconnect attempts against a flaky transport.
package backoff

import "time"

// New creates a Strategy whose first Backoff returns base; each later
// call returns base plus factor times the previous duration, capped at
// max.
func New(base time.Duration, factor float64, max time.Duration) *Strategy {
	return &Strategy{
		initialDuration: base,
		factor:          factor,
		durationCap:     max,
	}
}

// Strategy tracks one reconnect loop's current back-off duration.
type Strategy struct {
	initialDuration time.Duration
	factor          float64
	durationCap     time.Duration

	duration time.Duration
}

// Backoff grows the current duration and returns it.
func (s *Strategy) Backoff() time.Duration {
	s.duration = s.initialDuration + time.Duration(float64(s.duration)*s.factor)
	if s.duration > s.durationCap {
		s.duration = s.durationCap
	}
	return s.duration
}

// Reset returns the strategy to its initial state, for use once a
// connection succeeds again.
func (s *Strategy) Reset() {
	s.duration = 0
}
