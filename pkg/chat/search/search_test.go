package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func newTestLog(t *testing.T) *events.Log {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	l, err := events.Create(s, models.ChatMeta{ID: "chat1", HistoryVisibleToNewJoiners: true})
	require.NoError(t, err)
	return l
}

func pushText(t *testing.T, l *events.Log, id, text string) {
	t.Helper()
	_, err := l.PushMessage(events.MessageArgs{
		ID:      types.MessageID(id),
		Sender:  "alice",
		Content: models.Content{Text: &models.TextContent{Text: text}},
		Now:     1000,
	})
	require.NoError(t, err)
}

func pushFile(t *testing.T, l *events.Log, id, name, caption string) {
	t.Helper()
	_, err := l.PushMessage(events.MessageArgs{
		ID:      types.MessageID(id),
		Sender:  "alice",
		Content: models.Content{File: &models.FileContent{Name: name, Caption: caption}},
		Now:     1000,
	})
	require.NoError(t, err)
}

func TestSearchMatchGrades(t *testing.T) {
	l := newTestLog(t)
	pushText(t, l, "prefix", "roadmap for the quarter")
	pushText(t, l, "substr", "the roadmap we discussed")
	pushText(t, l, "insens", "the ROADMAP we discussed")
	pushText(t, l, "miss", "nothing relevant here")

	res, err := Search(l, Query{Terms: "roadmap"})
	require.NoError(t, err)
	require.Len(t, res, 3)
	// prefix > case-sensitive substring > case-insensitive
	require.Equal(t, types.MessageID("prefix"), res[0].MessageID)
	require.Equal(t, types.MessageID("substr"), res[1].MessageID)
	require.Equal(t, types.MessageID("insens"), res[2].MessageID)
}

func TestSearchFieldWeights(t *testing.T) {
	l := newTestLog(t)
	pushFile(t, l, "caption-hit", "scan.pdf", "budget figures")
	pushText(t, l, "text-hit", "budget figures")

	res, err := Search(l, Query{Terms: "budget"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	// identical match grade and field length, so the text weight decides
	require.Equal(t, types.MessageID("text-hit"), res[0].MessageID)
	require.Greater(t, res[0].Score, res[1].Score)
}

func TestSearchShorterFieldWins(t *testing.T) {
	l := newTestLog(t)
	pushText(t, l, "long", "status update with a very long trailing explanation nobody reads")
	pushText(t, l, "short", "status update")

	res, err := Search(l, Query{Terms: "status"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, types.MessageID("short"), res[0].MessageID)
}

func TestSearchHonorsVisibilityFloor(t *testing.T) {
	l := newTestLog(t)
	pushText(t, l, "old", "secret plans")
	pushText(t, l, "new", "secret plans")

	res, err := Search(l, Query{Terms: "secret"})
	require.NoError(t, err)
	require.Len(t, res, 2)

	res, err = Search(l, Query{Terms: "secret", MinVisible: 2})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, types.MessageID("new"), res[0].MessageID)
}

func TestSearchDeletedUntilPurged(t *testing.T) {
	l := newTestLog(t)
	pushText(t, l, "m1", "disappearing act")

	require.NoError(t, l.DeleteMessage("m1", "alice", false, 300000))
	res, err := Search(l, Query{Terms: "disappearing"})
	require.NoError(t, err)
	require.Len(t, res, 1, "retained payload should still match before purge")

	require.NoError(t, l.PurgeMessage("m1", 600000))
	res, err = Search(l, Query{Terms: "disappearing"})
	require.NoError(t, err)
	require.Empty(t, res, "purged payload must not match")
}

func TestSearchMaxResults(t *testing.T) {
	l := newTestLog(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		pushText(t, l, id, "common phrase")
	}
	res, err := Search(l, Query{Terms: "common", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, res, 2)
	// ties break newest-first
	require.Greater(t, res[0].MessageIndex, res[1].MessageIndex)
}

func TestSearchEmptyQuery(t *testing.T) {
	l := newTestLog(t)
	pushText(t, l, "m1", "anything")
	res, err := Search(l, Query{Terms: "   "})
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestSearchMultipleTermsAccumulate(t *testing.T) {
	l := newTestLog(t)
	pushText(t, l, "both", "alpha beta")
	pushText(t, l, "one", "alpha gamma")

	res, err := Search(l, Query{Terms: "alpha beta"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, types.MessageID("both"), res[0].MessageID)
}
