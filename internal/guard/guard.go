// Package guard holds the process-local issuance guards: per-(issuer, command)
// cooldown timestamps and the cache of already-executed command hashes. The
// cooldown table resets on restart; the executed cache is rehydrated from the
// mailbox and acts as the durable backstop.
package guard

import (
	"errors"
	"sync"
	"time"
)

var ErrCooldown = errors.New("identical command issued too recently")
var ErrAlreadyExecuted = errors.New("identical command already executed")

type Guard struct {
	mutex     sync.Mutex
	cooldowns map[string]time.Time
	executed  map[string]struct{}
	window    time.Duration

	now func() time.Time
}

func New(window time.Duration) *Guard {
	return NewWithClock(window, time.Now)
}

// NewWithClock is New with an injected time source, for tests.
func NewWithClock(window time.Duration, now func() time.Time) *Guard {
	return &Guard{
		cooldowns: make(map[string]time.Time),
		executed:  make(map[string]struct{}),
		window:    window,
		now:       now,
	}
}

// CheckAndArm validates an issuance attempt and stamps the cooldown window for
// the (issuer, hash) pair in one critical section, so two near-simultaneous
// taps cannot both pass before either arms the window.
//
// The stamp is written even when the attempt is rejected: a rejected attempt
// restarts the window, so hammering a button keeps the command blocked. This
// matches the observed behavior the rest of the system is tuned for.
func (g *Guard) CheckAndArm(issuer, hash string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, done := g.executed[hash]; done {
		return ErrAlreadyExecuted
	}

	key := cooldownKey(issuer, hash)
	now := g.now()
	last, seen := g.cooldowns[key]
	g.cooldowns[key] = now

	if seen && now.Sub(last) < g.window {
		return ErrCooldown
	}
	return nil
}

// MarkExecuted records a hash as fully carried out. Further issuances of the
// same identity are rejected until the record ages out of the mailbox and the
// process restarts without it.
func (g *Guard) MarkExecuted(hash string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.executed[hash] = struct{}{}
}

// Rehydrate seeds the executed cache, typically from the mailbox at startup.
func (g *Guard) Rehydrate(hashes []string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	for _, h := range hashes {
		g.executed[h] = struct{}{}
	}
}

// Sweep evicts cooldown entries idle for longer than horizon and returns the
// number removed. Keeps abandoned sessions from growing the table forever.
func (g *Guard) Sweep(horizon time.Duration) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	cutoff := g.now().Add(-horizon)
	removed := 0
	for key, last := range g.cooldowns {
		if last.Before(cutoff) {
			delete(g.cooldowns, key)
			removed++
		}
	}
	return removed
}

func cooldownKey(issuer, hash string) string {
	return issuer + "\x00" + hash
}
