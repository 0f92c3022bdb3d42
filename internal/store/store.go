// Package store provides a versioned document store: whole documents are read
// and written by name, and every write is an optimistic compare-and-swap on the
// version returned by the preceding load. This closes the lost-update race that
// plain read-modify-write over a shared document would leave open between the
// bot and the remote agent.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("document not found")
var ErrVersionMismatch = errors.New("document version mismatch")

// Store is the durable document mailbox contract.
//
// Load returns the document bytes and its current version. Save persists the
// document only if the stored version still equals the given one, and returns
// the new version; creating a document requires version 0. Concurrent writers
// observe ErrVersionMismatch and retry from a fresh load.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, uint64, error)
	Save(ctx context.Context, name string, data []byte, version uint64) (uint64, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
