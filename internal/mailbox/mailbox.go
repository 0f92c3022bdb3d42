// Package mailbox manages the shared commands document: the bot appends
// pending commands, the remote agent flips them to a terminal status, and both
// sides read the whole document on every access.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telepult-io/telepult/internal/command"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/serializer"
	"github.com/telepult-io/telepult/internal/store"
)

var ErrDuplicatePending = errors.New("identical command already pending")
var ErrCommandNotFound = errors.New("command not found in mailbox")

// Document is the persisted mailbox shape.
type Document struct {
	Commands []command.Command `json:"commands"`
	LastID   int64             `json:"last_id"`
}

type Mailbox struct {
	store store.Store
	name  string
}

func New(s store.Store) *Mailbox {
	return &Mailbox{store: s, name: config.MailboxDocument}
}

// Load returns the current document and its store version. A missing document
// is an empty mailbox at version 0, not an error.
func (m *Mailbox) Load(ctx context.Context) (Document, uint64, error) {
	data, version, err := m.store.Load(ctx, m.name)
	if errors.Is(err, store.ErrNotFound) {
		return Document{}, 0, nil
	}
	if err != nil {
		return Document{}, 0, err
	}

	var doc Document
	if err := serializer.JSON.Unmarshal(data, &doc); err != nil {
		return Document{}, 0, fmt.Errorf("decode mailbox: %w", err)
	}
	return doc, version, nil
}

func (m *Mailbox) save(ctx context.Context, doc Document, version uint64) error {
	data, err := serializer.JSON.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode mailbox: %w", err)
	}
	_, err = m.store.Save(ctx, m.name, data, version)
	return err
}

// update runs a load-mutate-save cycle under a bounded CAS retry loop. The
// mutation runs again from a fresh snapshot after every version conflict, so
// invariant checks inside it always see the latest document.
func (m *Mailbox) update(ctx context.Context, mutate func(*Document) error) error {
	var lastErr error
	for range config.MailboxSaveRetries {
		doc, version, err := m.Load(ctx)
		if err != nil {
			return err
		}
		if err := mutate(&doc); err != nil {
			return err
		}
		err = m.save(ctx, doc, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrVersionMismatch) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("mailbox write contention persisted after %d attempts: %w", config.MailboxSaveRetries, lastErr)
}

// Append adds a pending command, assigns its ID, and caps the document size.
// At most one pending record per dedup hash may exist: a second append with
// the same effective identity fails with ErrDuplicatePending.
func (m *Mailbox) Append(ctx context.Context, cmd command.Command) (int64, error) {
	var id int64
	err := m.update(ctx, func(doc *Document) error {
		for _, existing := range doc.Commands {
			if existing.Status == command.StatusPending && existing.DedupHash == cmd.DedupHash {
				return ErrDuplicatePending
			}
		}

		doc.LastID++
		cmd.ID = doc.LastID
		id = cmd.ID
		doc.Commands = append(doc.Commands, cmd)
		trim(doc, config.MailboxMaxCommands)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Complete flips a command to a terminal status. This is the agent's side of
// the contract; the bot uses it in tests and in the cleanup tooling.
func (m *Mailbox) Complete(ctx context.Context, id int64, status command.Status, result string, now time.Time) error {
	return m.update(ctx, func(doc *Document) error {
		for i := range doc.Commands {
			if doc.Commands[i].ID == id {
				return doc.Commands[i].Transition(status, result, now)
			}
		}
		return fmt.Errorf("%w: id %d", ErrCommandNotFound, id)
	})
}

// Cleanup removes terminal records older than the retention horizon and
// returns how many were dropped. Pending records are never evicted by age.
func (m *Mailbox) Cleanup(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := m.update(ctx, func(doc *Document) error {
		horizon := now.Add(-config.RetentionHorizon)
		kept := doc.Commands[:0]
		removed = 0
		for _, cmd := range doc.Commands {
			if cmd.Status != command.StatusPending && cmd.CreatedAt.Before(horizon) {
				removed++
				continue
			}
			kept = append(kept, cmd)
		}
		doc.Commands = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ExecutedHashes returns the dedup hashes of all executed records, used to
// rehydrate the in-memory guard at startup.
func (m *Mailbox) ExecutedHashes(ctx context.Context) ([]string, error) {
	doc, _, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}

	var hashes []string
	for _, cmd := range doc.Commands {
		if cmd.Status == command.StatusExecuted {
			hashes = append(hashes, cmd.DedupHash)
		}
	}
	return hashes, nil
}

// trim caps the document to the newest max records, evicting oldest
// non-pending first. If everything is pending the document may exceed the cap;
// pending work is never dropped to satisfy a size bound.
func trim(doc *Document, max int) {
	for len(doc.Commands) > max {
		evicted := false
		for i, cmd := range doc.Commands {
			if cmd.Status != command.StatusPending {
				doc.Commands = append(doc.Commands[:i], doc.Commands[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
