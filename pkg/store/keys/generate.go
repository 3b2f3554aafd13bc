package keys

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// PadIndex returns a zero-padded event/message index string.
func PadIndex(i uint64) string {
	return fmt.Sprintf("%0*d", IndexPadWidth, i)
}

// PadTS returns a zero-padded millisecond timestamp string.
func PadTS(ts types.TimestampMillis) string {
	return fmt.Sprintf("%0*d", TSPadWidth, uint64(ts))
}

// GenChatMetaKey returns the meta key for a chat.
func GenChatMetaKey(chat types.ChatID) string {
	return fmt.Sprintf(ChatMetaKey, chat)
}

// GenEventKey returns the storage key for a main-log event.
func GenEventKey(chat types.ChatID, idx types.EventIndex) string {
	return fmt.Sprintf(EventKey, chat, PadIndex(uint64(idx)))
}

// GenThreadEventKey returns the storage key for an event in the thread
// sub-log rooted at root.
func GenThreadEventKey(chat types.ChatID, root types.EventIndex, idx types.EventIndex) string {
	return fmt.Sprintf(ThreadEvtKey, chat, PadIndex(uint64(root)), PadIndex(uint64(idx)))
}

// GenMessageIdxKey returns the message-id dedup index key.
func GenMessageIdxKey(chat types.ChatID, id types.MessageID) string {
	return fmt.Sprintf(MessageIdxKey, chat, id)
}

// GenMemberKey returns the membership record key for a user in a chat.
func GenMemberKey(chat types.ChatID, user types.UserID) string {
	return fmt.Sprintf(MemberKey, chat, user)
}

// GenBlockedKey returns the blocked-user marker key.
func GenBlockedKey(chat types.ChatID, user types.UserID) string {
	return fmt.Sprintf(BlockedKey, chat, user)
}

// GenExpiryKey returns the expiry index key for an event due at ts.
// root is MainLogRoot for main-log events.
func GenExpiryKey(ts types.TimestampMillis, chat types.ChatID, root, idx types.EventIndex) string {
	return fmt.Sprintf(ExpiryKey, PadTS(ts), chat, PadIndex(uint64(root)), PadIndex(uint64(idx)))
}

// GenPurgeKey returns the scheduled hard-delete job key for a message.
func GenPurgeKey(due types.TimestampMillis, chat types.ChatID, id types.MessageID) string {
	return fmt.Sprintf(PurgeKey, PadTS(due), chat, id)
}

// GenChatDeleteMarker returns the soft delete marker key for a chat.
func GenChatDeleteMarker(chat types.ChatID) string {
	return fmt.Sprintf(ChatDeleteMarker, chat)
}

// prefixes

// GenChatPrefix returns the prefix covering every key belonging to one
// chat, so deleting or migrating a chat is one contiguous key range.
func GenChatPrefix(chat types.ChatID) string {
	return fmt.Sprintf("c:%s:", chat)
}

// GenEventPrefix returns the prefix for a chat's main-log events.
func GenEventPrefix(chat types.ChatID) string {
	return fmt.Sprintf("c:%s:e:", chat)
}

// GenThreadPrefix returns the prefix for one thread sub-log.
func GenThreadPrefix(chat types.ChatID, root types.EventIndex) string {
	return fmt.Sprintf("c:%s:t:%s:e:", chat, PadIndex(uint64(root)))
}

// GenMemberPrefix returns the prefix for a chat's membership records.
func GenMemberPrefix(chat types.ChatID) string {
	return fmt.Sprintf("c:%s:u:", chat)
}

// GenBlockedPrefix returns the prefix for a chat's blocked-user markers.
func GenBlockedPrefix(chat types.ChatID) string {
	return fmt.Sprintf("c:%s:b:", chat)
}

// GenExpiryPrefix returns the prefix for the whole expiry index.
func GenExpiryPrefix() string { return "exp:" }

// GenPurgePrefix returns the prefix for scheduled hard-delete jobs.
func GenPurgePrefix() string { return "gc:purge:" }

// GenChatDeletePrefix returns the prefix for chat soft delete markers.
func GenChatDeletePrefix() string { return "del:c:" }
