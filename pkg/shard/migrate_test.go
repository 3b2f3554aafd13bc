package shard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/remote"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func TestMigrateChatMovesWholeRange(t *testing.T) {
	src, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	dst, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dst.Close() })

	peer := remote.NewLoopback(dst)
	rt := NewRuntime(Config{Store: src, Clock: NewManualClock(1000), Peer: peer})
	t.Cleanup(rt.Close)

	_, err = rt.CreateChat(chat.CreateArgs{
		ID: "moving", Public: true, HistoryVisibleToNewJoiners: true,
		Creator: "alice", Now: 1000,
	})
	require.NoError(t, err)
	require.NoError(t, rt.WithChat("moving", func(c *chat.Chat) error {
		for _, id := range []string{"m1", "m2", "m3"} {
			if _, err := c.SendMessage(chat.SendArgs{
				ID: types.MessageID(id), Sender: "alice",
				Content: models.Content{Text: &models.TextContent{Text: "payload " + id}},
				Now:     2000,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	srcKeys, err := src.ListKeys(keys.GenChatPrefix("moving"), 0)
	require.NoError(t, err)
	require.NotEmpty(t, srcKeys)

	// transient peer failure on the first batch must not lose anything
	peer.FailNext = true
	copied, err := rt.MigrateChat(context.Background(), "moving")
	require.NoError(t, err)
	require.Equal(t, len(srcKeys), copied)

	// the peer holds the full range, byte for byte
	for _, k := range srcKeys {
		_, err := dst.Get(k)
		require.NoError(t, err, "missing key %s on peer", k)
	}
	got, err := dst.Get(keys.GenChatMetaKey("moving"))
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// the source range is gone, a delete marker remains
	left, err := src.ListKeys(keys.GenChatPrefix("moving"), 0)
	require.NoError(t, err)
	require.Empty(t, left)
	_, err = src.Get(keys.GenChatDeleteMarker("moving"))
	require.NoError(t, err)
}
