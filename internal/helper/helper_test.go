package helper

import (
	"testing"
	"time"
)

func TestJitterBounds(t *testing.T) {
	interval := 10 * time.Second
	for range 1000 {
		got := Jitter(interval, 0.1)
		if got < 9*time.Second || got > 11*time.Second {
			t.Fatalf("Jitter(%v, 0.1) = %v, out of bounds", interval, got)
		}
	}
}

func TestJitterDisabled(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		frac     float64
	}{
		{"zero fraction", 10 * time.Second, 0},
		{"negative fraction", 10 * time.Second, -0.5},
		{"zero interval", 0, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jitter(tt.interval, tt.frac); got != tt.interval {
				t.Errorf("Jitter(%v, %v) = %v, want %v", tt.interval, tt.frac, got, tt.interval)
			}
		})
	}
}
