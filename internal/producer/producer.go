// Package producer is the write side of the command mailbox: it guards,
// records and persists operator requests destined for remote machines.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telepult-io/telepult/internal/command"
	"github.com/telepult-io/telepult/internal/eventlog"
	"github.com/telepult-io/telepult/internal/guard"
	"github.com/telepult-io/telepult/internal/mailbox"
)

type Producer struct {
	mailbox *mailbox.Mailbox
	guard   *guard.Guard
	events  *eventlog.Buffer

	now func() time.Time
}

func New(m *mailbox.Mailbox, g *guard.Guard, events *eventlog.Buffer) *Producer {
	return &Producer{
		mailbox: m,
		guard:   g,
		events:  events,
		now:     time.Now,
	}
}

// Rehydrate seeds the guard's executed cache from the persisted mailbox so
// that a restart does not forget which commands were already carried out.
func (p *Producer) Rehydrate(ctx context.Context) error {
	hashes, err := p.mailbox.ExecutedHashes(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate executed cache: %w", err)
	}
	p.guard.Rehydrate(hashes)
	slog.Debug("executed cache rehydrated", "hashes", len(hashes))
	return nil
}

// Issue queues a command for the target machine and returns its ID.
//
// Rejections carry guard.ErrCooldown, guard.ErrAlreadyExecuted or
// mailbox.ErrDuplicatePending. Any other error is a store failure: the caller
// must treat the command as not queued.
func (p *Producer) Issue(ctx context.Context, issuer string, t command.Type, target string, params map[string]string) (int64, error) {
	hash := command.DedupHash(issuer, t, params)

	if err := p.guard.CheckAndArm(issuer, hash); err != nil {
		return 0, fmt.Errorf("issue %s: %w", t, err)
	}

	cmd := command.New(issuer, t, target, params, p.now())
	id, err := p.mailbox.Append(ctx, cmd)
	if err != nil {
		return 0, fmt.Errorf("issue %s: %w", t, err)
	}

	p.events.Log("command_issued", issuer, fmt.Sprintf("type=%s target=%s hash=%.12s", t, target, hash))
	slog.Info("command issued", "id", id, "type", t, "target", target, "issuer", issuer)

	// the mailbox write already cost a store round-trip, piggyback the log flush
	if err := p.events.Flush(ctx); err != nil {
		slog.Warn("opportunistic log flush failed", "error", err)
	}

	return id, nil
}

// IsRejection reports whether an Issue error is one of the guard or duplicate
// rejections, as opposed to a store failure.
func IsRejection(err error) bool {
	return errors.Is(err, guard.ErrCooldown) ||
		errors.Is(err, guard.ErrAlreadyExecuted) ||
		errors.Is(err, mailbox.ErrDuplicatePending)
}
