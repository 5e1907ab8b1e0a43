package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns how long to wait before the given attempt (1-based) under the
// named policy. Unknown policies fall back to full-jitter exponential.
func Delay(policy string, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	switch policy {
	case "fixed":
		return minDur(base, max)
	case "linear":
		return minDur(base*time.Duration(attempt), max)
	case "exponential":
		return minDur(expDelay(base, attempt), max)
	default: // exp_full_jitter
		d := minDur(expDelay(base, attempt), max)
		if d <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(d) + 1))
	}
}

func expDelay(base time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempt-1))
	if f > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
