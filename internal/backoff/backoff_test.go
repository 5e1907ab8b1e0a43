package backoff

import (
	"math/rand"
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	d := Delay("fixed", 2*time.Second, 60*time.Second, 4, nil)
	if d != 2*time.Second {
		t.Errorf("fixed policy should always return base, got %v", d)
	}
}

func TestLinearCapped(t *testing.T) {
	d := Delay("linear", 5*time.Second, 12*time.Second, 3, nil)
	if d != 12*time.Second {
		t.Errorf("linear should cap at max, got %v", d)
	}
}

func TestExponentialGrowth(t *testing.T) {
	base := time.Second
	max := time.Hour
	prev := time.Duration(0)
	for attempt := 1; attempt <= 5; attempt++ {
		d := Delay("exponential", base, max, attempt, nil)
		if d <= prev {
			t.Fatalf("attempt %d: expected growth, got %v after %v", attempt, d, prev)
		}
		prev = d
	}
	if prev != 16*time.Second {
		t.Errorf("attempt 5 should be base*2^4, got %v", prev)
	}
}

func TestFullJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := 1; attempt <= 8; attempt++ {
		d := Delay("exp_full_jitter", time.Second, 30*time.Second, attempt, rng)
		if d < 0 || d > 30*time.Second {
			t.Fatalf("attempt %d: jittered delay %v out of [0, max]", attempt, d)
		}
	}
}

func TestDegenerateInputs(t *testing.T) {
	if d := Delay("fixed", 0, 0, 0, nil); d <= 0 {
		t.Errorf("zero inputs should still yield a positive delay, got %v", d)
	}
}
