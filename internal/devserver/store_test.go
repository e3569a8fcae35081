package devserver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srmsweets/hrportal/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestStoreGroupLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	g, err := store.CreateGroup(ctx, models.CreateGroupInput{
		Name: "Ops", Members: []string{"E1", "E2", "hr"}, CreatedBy: "hr",
	})
	require.NoError(t, err)
	require.NotEmpty(t, g.ID)
	require.Equal(t, []string{"E1", "E2", "hr"}, g.Members)
	require.Equal(t, map[string]int{"E1": 0, "E2": 0, "hr": 0}, g.UnreadCounts)

	groups, err := store.ListGroups(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	groups, err = store.ListGroups(ctx, "stranger")
	require.NoError(t, err)
	require.Empty(t, groups)

	require.NoError(t, store.DeleteGroup(ctx, g.ID))
	require.ErrorIs(t, store.DeleteGroup(ctx, g.ID), ErrGroupNotFound)
	_, err = store.ListMessages(ctx, g.ID)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestStoreSendRaisesUnreadForOthers(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	g, err := store.CreateGroup(ctx, models.CreateGroupInput{
		Name: "Ops", Members: []string{"E1", "hr"}, CreatedBy: "hr",
	})
	require.NoError(t, err)

	first, err := store.SendMessage(ctx, g.ID, "E1", "Ravi", "one")
	require.NoError(t, err)
	_, err = store.SendMessage(ctx, g.ID, "E1", "Ravi", "two")
	require.NoError(t, err)

	g, err = store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, 2, g.Unread("hr"))
	require.Equal(t, 0, g.Unread("E1"))
	require.Equal(t, "two", g.LastMessage)
	require.Equal(t, "Ravi", g.LastMessageSender)
	require.True(t, g.UpdatedAt.After(first.Timestamp.Time))

	msgs, err := store.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].ID)
	require.Equal(t, first.Timestamp.Unix(), msgs[0].Timestamp.Unix())

	require.NoError(t, store.MarkRead(ctx, g.ID, "hr"))
	g, err = store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Zero(t, g.Unread("hr"))

	_, err = store.SendMessage(ctx, g.ID, "outsider", "X", "hi")
	require.ErrorIs(t, err, ErrNotMember)
	require.ErrorIs(t, store.MarkRead(ctx, "missing", "hr"), ErrGroupNotFound)
}

func TestStoreGroupsOrderedByRecency(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	older, err := store.CreateGroup(ctx, models.CreateGroupInput{Name: "Older", Members: []string{"E1", "hr"}, CreatedBy: "hr"})
	require.NoError(t, err)
	newer, err := store.CreateGroup(ctx, models.CreateGroupInput{Name: "Newer", Members: []string{"E1", "hr"}, CreatedBy: "hr"})
	require.NoError(t, err)

	groups, err := store.ListGroups(ctx, "hr")
	require.NoError(t, err)
	require.Equal(t, []string{newer.ID, older.ID}, []string{groups[0].ID, groups[1].ID})

	_, err = store.SendMessage(ctx, older.ID, "E1", "Ravi", "bump")
	require.NoError(t, err)
	groups, err = store.ListGroups(ctx, "hr")
	require.NoError(t, err)
	require.Equal(t, older.ID, groups[0].ID)
}

func TestStoreSeed(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	hr := models.DefaultIdentity()

	require.NoError(t, store.Seed(ctx, hr))
	require.NoError(t, store.Seed(ctx, hr), "seeding twice is a no-op")

	groups, err := store.ListGroups(ctx, hr.UserID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, len(seedEmployees))

	pending, err := store.ListRequests(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	all, err := store.ListRequests(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries on busy", func(t *testing.T) {
		attempts := 0
		err := withRetry(ctx, 3, time.Millisecond, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		attempts := 0
		err := withRetry(ctx, 3, time.Millisecond, func() error {
			attempts++
			return errors.New("boom")
		})
		require.Error(t, err)
		require.Equal(t, 1, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		err := withRetry(ctx, 2, time.Millisecond, func() error {
			attempts++
			return errors.New("SQLITE_BUSY")
		})
		require.Error(t, err)
		require.Equal(t, 2, attempts)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := withRetry(cancelled, 3, time.Millisecond, func() error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})
}

// stubRows yields ids then reports err from Err.
type stubRows struct {
	ids    []string
	pos    int
	err    error
	closed bool
}

func (r *stubRows) Next() bool {
	if r.pos >= len(r.ids) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.ids[r.pos-1]
	return nil
}

func (r *stubRows) Err() error { return r.err }

func (r *stubRows) Close() error {
	r.closed = true
	return nil
}

func TestCollectIDs(t *testing.T) {
	rows := &stubRows{ids: []string{"g1", "g2"}}
	ids, err := collectIDs(rows)
	require.NoError(t, err)
	require.Equal(t, []string{"g1", "g2"}, ids)
	require.True(t, rows.closed)

	broken := errors.New("disk I/O error")
	rows = &stubRows{ids: []string{"g1"}, err: broken}
	ids, err = collectIDs(rows)
	require.ErrorIs(t, err, broken)
	require.Nil(t, ids, "iteration failure must not return a short list")
	require.True(t, rows.closed)
}
