package chat

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/search"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// EventsRange pages the main log for user, bounded by their visibility
// window. Non-members may read public chats from the beginning.
func (c *Chat) EventsRange(user types.UserID, start types.EventIndex, ascending bool, maxEvents int) ([]models.EventWrapper, error) {
	minE, _, err := c.visibilityFor(user)
	if err != nil {
		return nil, err
	}
	return c.log.Range(events.RangeArgs{
		Start:      start,
		Ascending:  ascending,
		MaxEvents:  maxEvents,
		MinVisible: minE,
	})
}

// ThreadEvents pages a thread sub-log for user. Whoever may see the
// root may see the thread.
func (c *Chat) ThreadEvents(user types.UserID, root types.EventIndex, start types.EventIndex, ascending bool, maxEvents int) ([]models.EventWrapper, error) {
	minE, _, err := c.visibilityFor(user)
	if err != nil {
		return nil, err
	}
	return c.log.RangeThread(root, events.RangeArgs{
		Start:      start,
		Ascending:  ascending,
		MaxEvents:  maxEvents,
		MinVisible: minE,
	})
}

// GetEvent returns one main-log event for user.
func (c *Chat) GetEvent(user types.UserID, idx types.EventIndex) (*models.EventWrapper, error) {
	minE, _, err := c.visibilityFor(user)
	if err != nil {
		return nil, err
	}
	return c.log.GetByIndex(idx, minE)
}

// GetMessage resolves a message id for user, wherever it lives.
func (c *Chat) GetMessage(user types.UserID, id types.MessageID) (*models.EventWrapper, error) {
	minE, _, err := c.visibilityFor(user)
	if err != nil {
		return nil, err
	}
	w, _, err := c.log.GetByMessageID(id, minE)
	return w, err
}

// ThreadSummary returns the summary on a thread's root message.
func (c *Chat) ThreadSummary(user types.UserID, root types.EventIndex) (*models.ThreadSummary, error) {
	minE, _, err := c.visibilityFor(user)
	if err != nil {
		return nil, err
	}
	return c.log.ThreadSummaryFor(root, minE)
}

// Search scores the chat's messages against terms for user, bounded by
// their visibility window.
func (c *Chat) Search(user types.UserID, terms string, maxResults int) ([]search.Result, error) {
	minE, _, err := c.visibilityFor(user)
	if err != nil {
		return nil, err
	}
	return search.Search(c.log, search.Query{
		Terms:      terms,
		MaxResults: maxResults,
		MinVisible: minE,
	})
}

// Summary is the chat state snapshot clients poll for incremental sync.
type Summary struct {
	ID                 types.ChatID
	Name               string
	Public             bool
	Frozen             bool
	LatestEventIndex   types.EventIndex
	LatestMessageIndex types.MessageIndex
	LatestUpdate       types.TimestampMillis
	MemberCount        int
}

// Summarize returns the chat summary, or ErrNotFound once deleted.
// Callers compare LatestUpdate against their own watermark to decide
// whether anything changed since their last sync.
func (c *Chat) Summarize() (*Summary, error) {
	meta := c.log.Meta()
	n, err := c.members.Count()
	if err != nil {
		return nil, err
	}
	return &Summary{
		ID:                 meta.ID,
		Name:               meta.Name,
		Public:             meta.Public,
		Frozen:             meta.Frozen,
		LatestEventIndex:   meta.LatestEventIndex,
		LatestMessageIndex: meta.LatestMessageIndex,
		LatestUpdate:       meta.LatestUpdate,
		MemberCount:        n,
	}, nil
}
