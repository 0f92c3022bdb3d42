// Package eventlog buffers structured audit events in memory and merges them
// into a persisted, size-capped log document. Flushing is batched: it happens
// on a timer, when the buffer fills, and opportunistically after unrelated
// store writes, trading timeliness for fewer store round-trips.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/serializer"
	"github.com/telepult-io/telepult/internal/store"
)

type Entry struct {
	Time    time.Time `json:"time"`
	Event   string    `json:"event"`
	Actor   string    `json:"actor"`
	Details string    `json:"details,omitempty"`
}

// Document is the persisted log shape.
type Document struct {
	Logs []Entry `json:"logs"`
}

type Buffer struct {
	mutex   sync.Mutex
	entries []Entry

	store     store.Store
	name      string
	threshold int
	max       int

	now func() time.Time
}

func New(s store.Store) *Buffer {
	return &Buffer{
		store:     s,
		name:      config.EventLogDocument,
		threshold: config.EventLogFlushThreshold,
		max:       config.EventLogMaxEntries,
		now:       time.Now,
	}
}

// Log appends an event to the in-memory buffer. It never blocks on the store.
func (b *Buffer) Log(event, actor, details string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.entries = append(b.entries, Entry{Time: b.now(), Event: event, Actor: actor, Details: details})
}

// Full reports whether the buffer reached the flush threshold.
func (b *Buffer) Full() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.entries) >= b.threshold
}

// Flush merges buffered entries into the persisted document, truncating it to
// the newest max entries. A no-op when the buffer is empty. On failure the
// entries stay buffered for the next attempt.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mutex.Lock()
	pending := b.entries
	b.entries = nil
	b.mutex.Unlock()

	if len(pending) == 0 {
		return nil
	}

	err := b.merge(ctx, pending)
	if err != nil {
		b.mutex.Lock()
		b.entries = append(pending, b.entries...)
		b.mutex.Unlock()
	}
	return err
}

func (b *Buffer) merge(ctx context.Context, pending []Entry) error {
	for range config.MailboxSaveRetries {
		doc := Document{}
		data, version, err := b.store.Load(ctx, b.name)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := serializer.JSON.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode log document: %w", err)
			}
		}

		doc.Logs = append(doc.Logs, pending...)
		if len(doc.Logs) > b.max {
			doc.Logs = doc.Logs[len(doc.Logs)-b.max:]
		}

		out, err := serializer.JSON.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode log document: %w", err)
		}
		_, err = b.store.Save(ctx, b.name, out, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrVersionMismatch) {
			return err
		}
	}
	return fmt.Errorf("log flush contention persisted after %d attempts: %w", config.MailboxSaveRetries, store.ErrVersionMismatch)
}
