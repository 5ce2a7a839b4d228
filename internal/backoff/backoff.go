// Package backoff computes retry delays for the executor. Strategies are
// stateless and safe for concurrent use.
package backoff

import (
	"math"
	"time"
)

// Strategy returns the delay before retry attempt n (1-indexed: attempt 1 is
// the first retry after the initial failure).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Fixed always waits the same interval.
type Fixed struct{ Interval time.Duration }

func (f Fixed) Delay(int) time.Duration { return f.Interval }

// Exponential doubles the delay each attempt: Initial * 2^(attempt-1),
// capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

func (e Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ForPolicy maps a descriptor backoff policy string to a strategy.
// Unknown policies fall back to fixed.
func ForPolicy(policy string) Strategy {
	switch policy {
	case "exponential":
		return Exponential{Initial: 30 * time.Second, Max: 10 * time.Minute}
	default:
		return Fixed{Interval: 60 * time.Second}
	}
}
