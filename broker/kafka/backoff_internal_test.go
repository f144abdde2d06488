package kafka

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	cases := []struct {
		current, max, want time.Duration
	}{
		{time.Second, 10 * time.Second, 2 * time.Second},
		{5 * time.Second, 8 * time.Second, 8 * time.Second},
		{100 * time.Millisecond, 5 * time.Second, 200 * time.Millisecond},
	}

	for _, c := range cases {
		if got := calculateBackoff(c.current, c.max); got != c.want {
			t.Errorf("calculateBackoff(%v, %v) = %v, want %v", c.current, c.max, got, c.want)
		}
	}
}
