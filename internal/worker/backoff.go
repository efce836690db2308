package worker

import (
	"errors"
	"math/rand"
	"time"

	"taskforge/internal/store"
)

// backoffDelay grows base exponentially per attempt, capped at maxD, with
// +/-20% jitter so multiple loop instances do not retry in lockstep.
func backoffDelay(attempt int, base, maxD time.Duration) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if maxD <= 0 {
		maxD = 15 * time.Second
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxD {
			d = maxD
			break
		}
	}
	r := (rand.Float64()*2 - 1) * 0.2
	d = time.Duration(float64(d) * (1 + r))
	if d < 0 {
		d = 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}

func isTerminalStoreErr(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidTransition)
}
