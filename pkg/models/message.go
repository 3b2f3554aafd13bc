package models

import (
	"sort"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Message is the payload of a Message event. ID is the caller-supplied
// idempotent dedup key; MessageIndex is the chat-assigned monotonic
// counter over the Message subsequence of the log.
type Message struct {
	ID           types.MessageID       `cbor:"id"`
	MessageIndex types.MessageIndex    `cbor:"mi"`
	Sender       types.UserID          `cbor:"s"`
	Content      Content               `cbor:"c"`
	RepliesTo    *ReplyContext         `cbor:"rt,omitempty"`
	Edits        []EditRevision        `cbor:"ed,omitempty"`
	Reactions    map[string][]types.UserID `cbor:"re,omitempty"`
	Deleted      *DeletedMarker        `cbor:"del,omitempty"`
	ThreadSummary *ThreadSummary       `cbor:"th,omitempty"`
	LastUpdated  types.TimestampMillis `cbor:"lu,omitempty"`
}

// Content is the message content union; exactly one field is non-nil.
type Content struct {
	Text     *TextContent     `cbor:"t,omitempty"`
	File     *FileContent     `cbor:"f,omitempty"`
	Proposal *ProposalContent `cbor:"p,omitempty"`
	Trade    *P2PTradeContent `cbor:"tr,omitempty"`
}

// TextContent is a plain text message body.
type TextContent struct {
	Text string `cbor:"t"`
}

// FileContent references an uploaded blob by id; the blob itself lives
// with the storage collaborator, not in the event log.
type FileContent struct {
	Name    string `cbor:"n"`
	Caption string `cbor:"c,omitempty"`
	MimeType string `cbor:"m,omitempty"`
	BlobID  string `cbor:"b,omitempty"`
	Size    uint64 `cbor:"s,omitempty"`
}

// ReplyContext points at the replied-to event by index; references are
// always indices into the owning log, never keys or pointers, so
// serialization and migration stay trivial.
type ReplyContext struct {
	EventIndex types.EventIndex  `cbor:"e"`
	ThreadRoot *types.EventIndex `cbor:"r,omitempty"`
}

// EditRevision records one prior content of an edited message.
type EditRevision struct {
	Content   Content               `cbor:"c"`
	EditedAt  types.TimestampMillis `cbor:"ts"`
	EditedBy  types.UserID          `cbor:"by"`
}

// DeletedMarker replaces visible content after a soft delete. The
// marker persists forever for ordering continuity; ContentPurged flips
// once the grace period ends and the payload is physically removed.
type DeletedMarker struct {
	DeletedBy     types.UserID          `cbor:"by"`
	Timestamp     types.TimestampMillis `cbor:"ts"`
	AsModerator   bool                  `cbor:"mod,omitempty"`
	ContentPurged bool                  `cbor:"p,omitempty"`
}

// ThreadSummary lives on a root message and mirrors the tail state of
// its thread sub-log. It shares the EventIndex/MessageIndex invariants
// but is scoped to the root message's thread.
type ThreadSummary struct {
	Participants         []types.UserID        `cbor:"pa,omitempty"`
	ReplyCount           uint32                `cbor:"rc"`
	LatestEventIndex     types.EventIndex      `cbor:"le"`
	LatestMessageIndex   types.MessageIndex    `cbor:"lm"`
	LatestEventTimestamp types.TimestampMillis `cbor:"lt"`
}

// AddParticipant records a thread participant once, preserving order.
func (t *ThreadSummary) AddParticipant(user types.UserID) {
	for _, p := range t.Participants {
		if p == user {
			return
		}
	}
	t.Participants = append(t.Participants, user)
}

// AddReaction adds user to the reactor set for reaction, reporting
// whether the set changed.
func (m *Message) AddReaction(reaction string, user types.UserID) bool {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]types.UserID)
	}
	users := m.Reactions[reaction]
	for _, u := range users {
		if u == user {
			return false
		}
	}
	users = append(users, user)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	m.Reactions[reaction] = users
	return true
}

// RemoveReaction removes user from the reactor set for reaction,
// reporting whether the set changed. Empty sets are dropped.
func (m *Message) RemoveReaction(reaction string, user types.UserID) bool {
	users, ok := m.Reactions[reaction]
	if !ok {
		return false
	}
	for i, u := range users {
		if u == user {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, reaction)
			} else {
				m.Reactions[reaction] = users
			}
			return true
		}
	}
	return false
}

// MessageLocator is the value stored under the message-id index key; it
// resolves a message id to its position in the log.
type MessageLocator struct {
	V            uint8              `cbor:"v"`
	ThreadRoot   types.EventIndex   `cbor:"r"` // keys.MainLogRoot for main-log messages
	EventIndex   types.EventIndex   `cbor:"e"`
	MessageIndex types.MessageIndex `cbor:"m"`
}
