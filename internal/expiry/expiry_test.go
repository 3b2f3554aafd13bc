package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat"
	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/shard"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func newFixture(t *testing.T) (*shard.Runtime, *shard.ManualClock, *Manager) {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := shard.NewManualClock(1000)
	rt := shard.NewRuntime(shard.Config{Store: s, Clock: clock})
	t.Cleanup(rt.Close)

	m := New(rt, Options{Enabled: true})
	return rt, clock, m
}

func createChat(t *testing.T, rt *shard.Runtime, id types.ChatID) {
	t.Helper()
	_, err := rt.CreateChat(chat.CreateArgs{
		ID: id, Public: true, HistoryVisibleToNewJoiners: true,
		Creator: "alice", Now: 1000,
	})
	require.NoError(t, err)
}

func send(t *testing.T, rt *shard.Runtime, chatID types.ChatID, args chat.SendArgs) {
	t.Helper()
	require.NoError(t, rt.WithChat(chatID, func(c *chat.Chat) error {
		_, err := c.SendMessage(args)
		return err
	}))
}

func TestSweepDropsExpiredEvents(t *testing.T) {
	rt, clock, m := newFixture(t)
	createChat(t, rt, "room")
	send(t, rt, "room", chat.SendArgs{
		ID: "ephemeral", Sender: "alice",
		Content: models.Content{Text: &models.TextContent{Text: "gone soon"}},
		TTL:     5000, Now: 2000,
	})
	send(t, rt, "room", chat.SendArgs{
		ID: "durable", Sender: "alice",
		Content: models.Content{Text: &models.TextContent{Text: "stays"}},
		Now:     2000,
	})

	// before the deadline nothing moves
	clock.Set(6999)
	stats, err := m.RunImmediate()
	require.NoError(t, err)
	require.Zero(t, stats.ExpiredEvents)

	clock.Set(7000)
	stats, err = m.RunImmediate()
	require.NoError(t, err)
	require.Equal(t, 1, stats.ExpiredEvents)

	require.NoError(t, rt.WithChat("room", func(c *chat.Chat) error {
		_, err := c.GetMessage("alice", "ephemeral")
		require.ErrorIs(t, err, models.ErrNotFound)
		w, err := c.GetMessage("alice", "durable")
		require.NoError(t, err)
		require.Equal(t, "stays", w.Event.Message.Content.Text.Text)
		return nil
	}))

	left, err := rt.Store.ListKeys(keys.GenExpiryPrefix(), 0)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestSweepExecutesDuePurges(t *testing.T) {
	rt, clock, m := newFixture(t)
	createChat(t, rt, "room")
	send(t, rt, "room", chat.SendArgs{
		ID: "doomed", Sender: "alice",
		Content: models.Content{Text: &models.TextContent{Text: "secret"}},
		Now:     2000,
	})
	require.NoError(t, rt.WithChat("room", func(c *chat.Chat) error {
		return c.DeleteMessage("alice", "doomed", 3000)
	}))

	// inside the grace window the payload survives
	clock.Set(3000 + events.DeleteGraceMillis - 1)
	stats, err := m.RunImmediate()
	require.NoError(t, err)
	require.Zero(t, stats.PurgedMessages)

	clock.Set(3000 + events.DeleteGraceMillis)
	stats, err = m.RunImmediate()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PurgedMessages)

	log, err := events.Open(rt.Store, "room")
	require.NoError(t, err)
	w, _, err := log.GetByMessageID("doomed", 0)
	require.NoError(t, err)
	require.True(t, w.Event.Message.Deleted.ContentPurged)
	require.Nil(t, w.Event.Message.Content.Text)

	jobs, err := rt.Store.ListKeys(keys.GenPurgePrefix(), 0)
	require.NoError(t, err)
	require.Empty(t, jobs)

	// a second sweep is a no-op
	stats, err = m.RunImmediate()
	require.NoError(t, err)
	require.Zero(t, stats.PurgedMessages)
}

func TestSweepPurgesDeletedChatAfterGrace(t *testing.T) {
	rt, clock, m := newFixture(t)
	createChat(t, rt, "room")
	for _, id := range []string{"m1", "m2", "m3"} {
		send(t, rt, "room", chat.SendArgs{
			ID: types.MessageID(id), Sender: "alice",
			Content: models.Content{Text: &models.TextContent{Text: id}},
			Now:     2000,
		})
	}
	require.NoError(t, rt.WithChat("room", func(c *chat.Chat) error {
		return c.Delete("alice", 5000)
	}))

	clock.Set(6000)
	stats, err := m.RunImmediate()
	require.NoError(t, err)
	require.Zero(t, stats.PurgedChats)
	remaining, err := rt.Store.ListKeys(keys.GenChatPrefix("room"), 0)
	require.NoError(t, err)
	require.NotEmpty(t, remaining)

	clock.Set(5000 + events.DeleteGraceMillis)
	stats, err = m.RunImmediate()
	require.NoError(t, err)
	require.Equal(t, 1, stats.PurgedChats)
	require.Equal(t, len(remaining), stats.DeletedKeys)

	remaining, err = rt.Store.ListKeys(keys.GenChatPrefix("room"), 0)
	require.NoError(t, err)
	require.Empty(t, remaining)
	_, err = rt.Store.Get(keys.GenChatDeleteMarker("room"))
	require.True(t, store.IsNotFound(err))
}

func TestSweepSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	rt, clock, _ := newFixture(t)
	createChat(t, rt, "room")
	send(t, rt, "room", chat.SendArgs{
		ID: "ephemeral", Sender: "alice",
		Content: models.Content{Text: &models.TextContent{Text: "x"}},
		TTL:     1000, Now: 2000,
	})
	clock.Set(10000)

	dir := t.TempDir()
	other := newFileLease(dir)
	ok, err := other.Acquire("other-process", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	m := New(rt, Options{Enabled: true, LeaseDir: dir})
	stats, err := m.RunImmediate()
	require.NoError(t, err)
	require.Zero(t, stats.ExpiredEvents)

	require.NoError(t, other.Release("other-process"))
	stats, err = m.RunImmediate()
	require.NoError(t, err)
	require.Equal(t, 1, stats.ExpiredEvents)
}

func TestStaleLeaseIsTakenOver(t *testing.T) {
	dir := t.TempDir()
	stale := newFileLease(dir)
	ok, err := stale.Acquire("dead-process", -time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	fresh := newFileLease(dir)
	ok, err = fresh.Acquire("live-process", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, fresh.Release("live-process"))
}
