package models

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// ChatMeta is the per-chat metadata record holding the log tails and
// chat-level flags. It is read and rewritten inside the same batch as
// every append, so the counters can never drift from the stored events.
type ChatMeta struct {
	V                  uint8                 `cbor:"v"`
	ID                 types.ChatID          `cbor:"id"`
	Name               string                `cbor:"n,omitempty"`
	Description        string                `cbor:"d,omitempty"`
	Public             bool                  `cbor:"pub,omitempty"`
	HistoryVisibleToNewJoiners bool          `cbor:"hv"`
	Created            types.TimestampMillis `cbor:"c"`
	LatestEventIndex   types.EventIndex      `cbor:"le"`
	LatestMessageIndex types.MessageIndex    `cbor:"lm"`
	LatestUpdate       types.TimestampMillis `cbor:"lu"`
	RulesVersion       uint32                `cbor:"rv,omitempty"`
	InviteCodeEnabled  bool                  `cbor:"ic,omitempty"`
	Frozen             bool                  `cbor:"fr,omitempty"`
	Deleted            bool                  `cbor:"del,omitempty"`
	DeletedTS          types.TimestampMillis `cbor:"dts,omitempty"`
}

// ChatMetaSchemaVersion is written into every new ChatMeta record.
const ChatMetaSchemaVersion = 1
