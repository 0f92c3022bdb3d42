package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/telepult-io/telepult/internal/command"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/store"
)

func newCmd(issuer string, t command.Type, created time.Time) command.Command {
	return command.New(issuer, t, "m1", nil, created)
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory())

	id1, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, time.Now()))
	require.NoError(t, err)
	id2, err := m.Append(ctx, newCmd("u1", command.TypeRestart, time.Now()))
	require.NoError(t, err)

	require.Equal(t, int64(1), id1)
	require.Equal(t, int64(2), id2)

	doc, _, err := m.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), doc.LastID)
	require.Len(t, doc.Commands, 2)
}

func TestAppendRejectsDuplicatePending(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory())

	_, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, time.Now()))
	require.NoError(t, err)

	_, err = m.Append(ctx, newCmd("u1", command.TypeShutdown, time.Now()))
	require.ErrorIs(t, err, ErrDuplicatePending)

	// a different issuer is a different identity
	_, err = m.Append(ctx, newCmd("u2", command.TypeShutdown, time.Now()))
	require.NoError(t, err)
}

func TestAppendAllowsReissueAfterCompletion(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory())
	now := time.Now()

	id, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, now))
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, id, command.StatusExecuted, "ok", now))

	_, err = m.Append(ctx, newCmd("u1", command.TypeShutdown, now))
	require.NoError(t, err)
}

func TestCompleteForwardOnly(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory())
	now := time.Now()

	id, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, now))
	require.NoError(t, err)

	require.NoError(t, m.Complete(ctx, id, command.StatusFailed, "agent unreachable", now))
	require.Error(t, m.Complete(ctx, id, command.StatusExecuted, "late", now))

	doc, _, err := m.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, command.StatusFailed, doc.Commands[0].Status)
	require.Equal(t, 1, doc.Commands[0].RetryCount)

	require.ErrorIs(t, m.Complete(ctx, 999, command.StatusExecuted, "", now), ErrCommandNotFound)
}

func TestCleanupPreservesPending(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory())
	now := time.Now()
	old := now.Add(-config.RetentionHorizon - time.Hour)

	stalePending, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, old))
	require.NoError(t, err)

	staleDone, err := m.Append(ctx, newCmd("u1", command.TypeRestart, old))
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, staleDone, command.StatusExecuted, "ok", old))

	fresh, err := m.Append(ctx, newCmd("u1", command.TypeLock, now))
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, fresh, command.StatusExecuted, "ok", now))

	removed, err := m.Cleanup(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	doc, _, err := m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Commands, 2)
	for _, cmd := range doc.Commands {
		require.NotEqual(t, staleDone, cmd.ID)
	}
	require.Equal(t, stalePending, doc.Commands[0].ID)
}

func TestTrimEvictsOldestTerminalFirst(t *testing.T) {
	doc := &Document{}
	now := time.Now()
	for i := range 10 {
		cmd := command.Command{ID: int64(i), Status: command.StatusExecuted, CreatedAt: now}
		if i == 0 || i == 5 {
			cmd.Status = command.StatusPending
		}
		doc.Commands = append(doc.Commands, cmd)
	}

	trim(doc, 4)

	require.Len(t, doc.Commands, 4)
	// both pending records survive, the rest are the newest terminal ones
	var ids []int64
	for _, cmd := range doc.Commands {
		ids = append(ids, cmd.ID)
	}
	require.Equal(t, []int64{0, 5, 8, 9}, ids)
}

func TestTrimKeepsAllPending(t *testing.T) {
	doc := &Document{}
	for i := range 6 {
		doc.Commands = append(doc.Commands, command.Command{ID: int64(i), Status: command.StatusPending})
	}

	trim(doc, 4)

	// pending work is never dropped for a size bound
	require.Len(t, doc.Commands, 6)
}

// contendedStore rejects the first N saves with a version mismatch to exercise
// the CAS retry loop.
type contendedStore struct {
	store.Store
	rejections int
}

func (c *contendedStore) Save(ctx context.Context, name string, data []byte, version uint64) (uint64, error) {
	if c.rejections > 0 {
		c.rejections--
		return 0, store.ErrVersionMismatch
	}
	return c.Store.Save(ctx, name, data, version)
}

func TestAppendRetriesOnVersionMismatch(t *testing.T) {
	ctx := context.Background()
	m := New(&contendedStore{Store: store.NewMemory(), rejections: 2})

	id, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, time.Now()))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
}

func TestAppendGivesUpUnderPersistentContention(t *testing.T) {
	ctx := context.Background()
	m := New(&contendedStore{Store: store.NewMemory(), rejections: config.MailboxSaveRetries + 1})

	_, err := m.Append(ctx, newCmd("u1", command.TypeShutdown, time.Now()))
	require.ErrorIs(t, err, store.ErrVersionMismatch)
}
