package shard

import (
	"github.com/google/uuid"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// IDSource mints identifiers for server-generated records. Injected so
// tests produce deterministic ids.
type IDSource interface {
	NewMessageID() types.MessageID
	NewKey() string
}

// UUIDSource mints random v4 UUIDs.
type UUIDSource struct{}

func (UUIDSource) NewMessageID() types.MessageID {
	return types.MessageID(uuid.NewString())
}

func (UUIDSource) NewKey() string { return uuid.NewString() }
