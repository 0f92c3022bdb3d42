package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const docKeyPrefix = "doc:"

// Badger is a Store backed by a local badger KV. Each value carries its version
// in the first 8 bytes, so version and payload always move together in one
// transaction. Badger's SSI gives a second line of defense: two racing Save
// calls on the same key cannot both commit.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store under dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Load(_ context.Context, name string) ([]byte, uint64, error) {
	var data []byte
	var version uint64

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(name))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version, data, err = decodeValue(raw)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", name, err)
	}
	return data, version, nil
}

func (b *Badger) Save(_ context.Context, name string, data []byte, version uint64) (uint64, error) {
	next := version + 1

	err := b.db.Update(func(txn *badger.Txn) error {
		current := uint64(0)
		item, err := txn.Get(docKey(name))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// new document
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			current, _, err = decodeValue(raw)
			if err != nil {
				return err
			}
		}

		if current != version {
			return ErrVersionMismatch
		}
		return txn.Set(docKey(name), encodeValue(next, data))
	})
	if errors.Is(err, badger.ErrConflict) {
		// a concurrent transaction won the race; same remedy as a stale version
		return 0, ErrVersionMismatch
	}
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", name, err)
	}
	return next, nil
}

func (b *Badger) List(_ context.Context, prefix string) ([]string, error) {
	var names []string

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(docKeyPrefix + prefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, docKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return names, nil
}

// RunGC periodically reclaims badger value log space until the context closes.
func (b *Badger) RunGC(ctx context.Context, interval time.Duration, threshold float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(threshold)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("store GC failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func docKey(name string) []byte {
	return fmt.Appendf(nil, "%s%s", docKeyPrefix, name)
}

func encodeValue(version uint64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, version)
	copy(buf[8:], data)
	return buf
}

func decodeValue(raw []byte) (uint64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, errors.New("corrupt document value: missing version header")
	}
	return binary.BigEndian.Uint64(raw), raw[8:], nil
}
