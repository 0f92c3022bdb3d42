package command

import (
	"testing"
	"time"
)

func TestDedupHashKeyOrderIndependent(t *testing.T) {
	a := map[string]string{"program": "notepad", "args": "/A"}
	b := map[string]string{"args": "/A", "program": "notepad"}

	ha := DedupHash("u1", TypeLaunchProgram, a)
	hb := DedupHash("u1", TypeLaunchProgram, b)
	if ha != hb {
		t.Errorf("hash differs for identical params in different insertion order: %s vs %s", ha, hb)
	}
}

func TestDedupHashDistinguishes(t *testing.T) {
	base := DedupHash("u1", TypeShutdown, nil)

	tests := []struct {
		name   string
		issuer string
		typ    Type
		params map[string]string
	}{
		{"different issuer", "u2", TypeShutdown, nil},
		{"different type", "u1", TypeRestart, nil},
		{"extra params", "u1", TypeShutdown, map[string]string{"force": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupHash(tt.issuer, tt.typ, tt.params); got == base {
				t.Errorf("hash collides with base for %s", tt.name)
			}
		})
	}
}

func TestDedupHashBoundaries(t *testing.T) {
	// Naive string concatenation would make these collide.
	if DedupHash("12", Type("3x"), nil) == DedupHash("1", Type("23x"), nil) {
		t.Error("field boundary ambiguity: issuer/type concatenation collides")
	}
	if DedupHash("u", TypeLaunchProgram, map[string]string{"ab": "c"}) ==
		DedupHash("u", TypeLaunchProgram, map[string]string{"a": "bc"}) {
		t.Error("field boundary ambiguity: params key/value concatenation collides")
	}
}

func TestDedupHashIgnoresTime(t *testing.T) {
	c1 := New("u1", TypeShutdown, "m1", nil, time.Unix(0, 0))
	c2 := New("u1", TypeShutdown, "m1", nil, time.Unix(1000, 0))
	if c1.DedupHash != c2.DedupHash {
		t.Error("hash depends on creation time")
	}
}

func TestTransition(t *testing.T) {
	now := time.Now()

	t.Run("pending to executed", func(t *testing.T) {
		c := New("u1", TypeShutdown, "m1", nil, now)
		if err := c.Transition(StatusExecuted, "ok", now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Status != StatusExecuted || c.ExecutedAt == nil || c.Result != "ok" {
			t.Errorf("transition did not apply: %+v", c)
		}
		if c.RetryCount != 0 {
			t.Errorf("retry count incremented on success: %d", c.RetryCount)
		}
	})

	t.Run("pending to failed increments retry", func(t *testing.T) {
		c := New("u1", TypeShutdown, "m1", nil, now)
		if err := c.Transition(StatusFailed, "boom", now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.RetryCount != 1 {
			t.Errorf("retry count = %d, want 1", c.RetryCount)
		}
	})

	t.Run("no reversal", func(t *testing.T) {
		c := New("u1", TypeShutdown, "m1", nil, now)
		if err := c.Transition(StatusExecuted, "ok", now); err != nil {
			t.Fatal(err)
		}
		if err := c.Transition(StatusFailed, "late", now); err == nil {
			t.Error("terminal command accepted a second transition")
		}
	})

	t.Run("pending is not a target", func(t *testing.T) {
		c := New("u1", TypeShutdown, "m1", nil, now)
		if err := c.Transition(StatusPending, "", now); err == nil {
			t.Error("transition to pending accepted")
		}
	})
}
