package types

import (
	"fmt"
	"regexp"
)

// TimestampMillis is a wall-clock timestamp in milliseconds since the
// Unix epoch. All persisted timestamps use this unit.
type TimestampMillis uint64

// EventIndex is the position of an event in a chat's log. Indices are
// assigned sequentially starting at 1 and are never reused.
type EventIndex uint64

// Incr returns the next event index.
func (e EventIndex) Incr() EventIndex { return e + 1 }

// MessageIndex is the position of a message within the subsequence of
// Message events in a chat's log. Every message has both an EventIndex
// and a MessageIndex; other events have only the former.
type MessageIndex uint64

// Incr returns the next message index.
func (m MessageIndex) Incr() MessageIndex { return m + 1 }

// ChatID identifies one chat (direct, group or channel) within a shard.
type ChatID string

// UserID is an opaque user identity managed by the identity collaborator.
type UserID string

// MessageID is the caller-supplied idempotent dedup key for a message.
type MessageID string

// OfferID identifies a p2p trade offer.
type OfferID string

// ProposalID identifies a governance proposal a message refers to.
type ProposalID uint64

// conservative ID validation: letters, digits, dot, underscore, dash,
// bounded length so ids are always safe to embed in store keys.
var idRegexp = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}$`)

// ValidID reports whether s is safe to embed in a store key.
func ValidID(s string) bool { return idRegexp.MatchString(s) }

// ValidateChatID ensures a chat id is safe to embed in keys.
func ValidateChatID(id ChatID) error {
	if id == "" {
		return fmt.Errorf("chat id empty")
	}
	if !ValidID(string(id)) {
		return fmt.Errorf("invalid chat id: %q", id)
	}
	return nil
}

// ValidateUserID ensures a user id is safe to embed in keys.
func ValidateUserID(id UserID) error {
	if id == "" {
		return fmt.Errorf("user id empty")
	}
	if !ValidID(string(id)) {
		return fmt.Errorf("invalid user id: %q", id)
	}
	return nil
}

// ValidateMessageID ensures a message id is safe to embed in keys.
func ValidateMessageID(id MessageID) error {
	if id == "" {
		return fmt.Errorf("message id empty")
	}
	if !ValidID(string(id)) {
		return fmt.Errorf("invalid message id: %q", id)
	}
	return nil
}
