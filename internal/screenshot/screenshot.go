// Package screenshot forwards screenshots captured by remote agents to the
// operator chat. Each binary artifact has a sidecar metadata document whose
// new→sent flip is the idempotency guard: a sent artifact is never forwarded
// again, even across interrupted batches and restarts.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/serializer"
	"github.com/telepult-io/telepult/internal/store"
)

const metaSuffix = ".meta.json"

const (
	StateNew  = "new"
	StateSent = "sent"
)

// Metadata is the sidecar document stored as <artifact>.meta.json.
type Metadata struct {
	Status        string     `json:"status"`
	TargetMachine string     `json:"target_machine,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentTo        string     `json:"sent_to,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// Sender delivers one artifact to the operator. Implemented by the Telegram
// front-end; images and generic documents render differently in chat.
type Sender interface {
	SendImage(ctx context.Context, name string, data []byte, caption string) error
	SendDocument(ctx context.Context, name string, data []byte, caption string) error
}

type Consumer struct {
	store     store.Store
	prefix    string
	sender    Sender
	recipient string

	now func() time.Time
}

func NewConsumer(s store.Store, sender Sender, recipient string) *Consumer {
	return &Consumer{
		store:     s,
		prefix:    config.ScreenshotPrefix,
		sender:    sender,
		recipient: recipient,
		now:       time.Now,
	}
}

type artifact struct {
	name        string
	meta        Metadata
	metaVersion uint64
}

// Poll forwards every artifact whose sidecar is still new, oldest first, and
// flips each sidecar to sent after successful delivery. A failure on one
// artifact is logged and the rest of the batch is still attempted; Poll
// returns how many were forwarded.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	pending, err := c.pending(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, art := range pending {
		if err := c.forward(ctx, art); err != nil {
			slog.Warn("screenshot forwarding failed", "artifact", art.name, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// pending collects new-state artifacts sorted by creation time ascending, so
// an interrupted batch resumes where it left off instead of reshuffling.
func (c *Consumer) pending(ctx context.Context) ([]artifact, error) {
	names, err := c.store.List(ctx, c.prefix)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}

	var pending []artifact
	for _, name := range names {
		if strings.HasSuffix(name, metaSuffix) {
			continue
		}

		data, version, err := c.store.Load(ctx, name+metaSuffix)
		if errors.Is(err, store.ErrNotFound) {
			// agent has not finished writing the sidecar yet, pick it up next poll
			continue
		}
		if err != nil {
			slog.Warn("screenshot sidecar unreadable", "artifact", name, "error", err)
			continue
		}

		var meta Metadata
		if err := serializer.JSON.Unmarshal(data, &meta); err != nil {
			slog.Warn("screenshot sidecar corrupt", "artifact", name, "error", err)
			continue
		}
		if meta.Status != StateNew {
			continue
		}
		pending = append(pending, artifact{name: name, meta: meta, metaVersion: version})
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].meta.CreatedAt.Before(pending[j].meta.CreatedAt)
	})
	return pending, nil
}

func (c *Consumer) forward(ctx context.Context, art artifact) error {
	data, _, err := c.store.Load(ctx, art.name)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	caption := fmt.Sprintf("Screenshot from %s (%s)",
		art.meta.TargetMachine, art.meta.CreatedAt.Format(time.DateTime))

	if isImage(art.name) {
		err = c.sender.SendImage(ctx, baseName(art.name), data, caption)
	} else {
		err = c.sender.SendDocument(ctx, baseName(art.name), data, caption)
	}
	if err != nil {
		return fmt.Errorf("forward artifact: %w", err)
	}

	// the flip makes delivery idempotent; only after it succeeds is the
	// artifact considered consumed
	now := c.now()
	art.meta.Status = StateSent
	art.meta.SentTo = c.recipient
	art.meta.SentAt = &now

	out, err := serializer.JSON.Marshal(art.meta)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if _, err := c.store.Save(ctx, art.name+metaSuffix, out, art.metaVersion); err != nil {
		return fmt.Errorf("flip sidecar: %w", err)
	}

	slog.Info("screenshot forwarded", "artifact", art.name, "machine", art.meta.TargetMachine)
	return nil
}

func isImage(name string) bool {
	switch {
	case strings.HasSuffix(name, ".png"), strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".jpeg"):
		return true
	}
	return false
}

func baseName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
