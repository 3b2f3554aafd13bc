package models

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// EventKind discriminates the event union. Values are stable wire
// identifiers; never renumber.
type EventKind string

const (
	EventMessage           EventKind = "message"
	EventMemberJoined      EventKind = "member_joined"
	EventMemberLeft        EventKind = "member_left"
	EventRoleChanged       EventKind = "role_changed"
	EventUsersBlocked      EventKind = "users_blocked"
	EventUsersUnblocked    EventKind = "users_unblocked"
	EventReactionAdded     EventKind = "reaction_added"
	EventReactionRemoved   EventKind = "reaction_removed"
	EventMessageDeleted    EventKind = "message_deleted"
	EventMessageEdited     EventKind = "message_edited"
	EventProposalVote      EventKind = "proposal_vote"
	EventTradeStatusChange EventKind = "p2p_trade_status"
	EventInviteCodeChanged EventKind = "invite_code_changed"
	EventRulesAccepted     EventKind = "rules_accepted"
	EventChatFrozen        EventKind = "chat_frozen"
)

// EventWrapper is the persisted envelope for one log entry. The index
// strictly increases per chat (and per thread sub-log), is never reused
// and never reordered. V is the record schema version; unknown fields
// from newer writers are ignored on decode.
type EventWrapper struct {
	V         uint8                  `cbor:"v"`
	Index     types.EventIndex       `cbor:"i"`
	Timestamp types.TimestampMillis  `cbor:"ts"`
	ExpiresAt *types.TimestampMillis `cbor:"exp,omitempty"`
	Event     EventPayload           `cbor:"e"`
}

// EventSchemaVersion is written into every new EventWrapper.
const EventSchemaVersion = 1

// EventPayload is the tagged union over entity kinds. Exactly one field
// is non-nil. Pointer-per-variant keeps the wire format self-describing
// and lets old readers skip variants they don't know.
type EventPayload struct {
	Message           *Message           `cbor:"msg,omitempty"`
	MemberJoined      *MemberJoined      `cbor:"mj,omitempty"`
	MemberLeft        *MemberLeft        `cbor:"ml,omitempty"`
	RoleChanged       *RoleChanged       `cbor:"rc,omitempty"`
	UsersBlocked      *UsersBlocked      `cbor:"ub,omitempty"`
	UsersUnblocked    *UsersUnblocked    `cbor:"uu,omitempty"`
	ReactionAdded     *ReactionEvent     `cbor:"ra,omitempty"`
	ReactionRemoved   *ReactionEvent     `cbor:"rr,omitempty"`
	MessageDeleted    *MessageRefEvent   `cbor:"md,omitempty"`
	MessageEdited     *MessageRefEvent   `cbor:"me,omitempty"`
	ProposalVote      *ProposalVoteEvent `cbor:"pv,omitempty"`
	TradeStatusChange *TradeStatusEvent  `cbor:"tsc,omitempty"`
	InviteCodeChanged *InviteCodeChanged `cbor:"icc,omitempty"`
	RulesAccepted     *RulesAccepted     `cbor:"rua,omitempty"`
	ChatFrozen        *ChatFrozen        `cbor:"cf,omitempty"`
}

// Kind returns the discriminant of the populated variant.
func (p *EventPayload) Kind() EventKind {
	switch {
	case p.Message != nil:
		return EventMessage
	case p.MemberJoined != nil:
		return EventMemberJoined
	case p.MemberLeft != nil:
		return EventMemberLeft
	case p.RoleChanged != nil:
		return EventRoleChanged
	case p.UsersBlocked != nil:
		return EventUsersBlocked
	case p.UsersUnblocked != nil:
		return EventUsersUnblocked
	case p.ReactionAdded != nil:
		return EventReactionAdded
	case p.ReactionRemoved != nil:
		return EventReactionRemoved
	case p.MessageDeleted != nil:
		return EventMessageDeleted
	case p.MessageEdited != nil:
		return EventMessageEdited
	case p.ProposalVote != nil:
		return EventProposalVote
	case p.TradeStatusChange != nil:
		return EventTradeStatusChange
	case p.InviteCodeChanged != nil:
		return EventInviteCodeChanged
	case p.RulesAccepted != nil:
		return EventRulesAccepted
	case p.ChatFrozen != nil:
		return EventChatFrozen
	}
	return ""
}

// membership / administrative events

type MemberJoined struct {
	User types.UserID `cbor:"u"`
}

type MemberLeft struct {
	User types.UserID `cbor:"u"`
}

type RoleChanged struct {
	User      types.UserID `cbor:"u"`
	ChangedBy types.UserID `cbor:"by"`
	OldRole   Role         `cbor:"or"`
	NewRole   Role         `cbor:"nr"`
}

type UsersBlocked struct {
	Users     []types.UserID `cbor:"us"`
	BlockedBy types.UserID   `cbor:"by"`
}

type UsersUnblocked struct {
	Users       []types.UserID `cbor:"us"`
	UnblockedBy types.UserID   `cbor:"by"`
}

type InviteCodeChanged struct {
	ChangedBy types.UserID `cbor:"by"`
	Enabled   bool         `cbor:"en"`
}

type RulesAccepted struct {
	User    types.UserID `cbor:"u"`
	Version uint32       `cbor:"ver"`
}

type ChatFrozen struct {
	FrozenBy types.UserID `cbor:"by"`
	Reason   string       `cbor:"r,omitempty"`
}

// audit events emitted by mutations of existing log entries

type ReactionEvent struct {
	User     types.UserID    `cbor:"u"`
	Message  types.MessageID `cbor:"m"`
	Reaction string          `cbor:"r"`
}

type MessageRefEvent struct {
	User    types.UserID    `cbor:"u"`
	Message types.MessageID `cbor:"m"`
}

type ProposalVoteEvent struct {
	User     types.UserID     `cbor:"u"`
	Message  types.MessageID  `cbor:"m"`
	Proposal types.ProposalID `cbor:"p"`
	Adopt    bool             `cbor:"a"`
}

type TradeStatusEvent struct {
	User    types.UserID    `cbor:"u"`
	Message types.MessageID `cbor:"m"`
	Offer   types.OfferID   `cbor:"o"`
	Status  TradeStatus     `cbor:"s"`
}
