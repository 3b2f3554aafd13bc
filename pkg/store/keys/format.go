package keys

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

const (
	// notation dictionary for key formats:
	// c    = chat
	// e    = event (main log)
	// t    = thread sub-log (keyed by root event index)
	// m    = message id index
	// u    = member (user)
	// b    = blocked user
	// exp  = event expiry index (TTL)
	// gc   = scheduled hard-delete (purge) job
	// del  = chat soft delete marker
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment (e.g. <chat_id>, <event_index>)

	// primary storage key formats
	ChatMetaKey  = "c:%s:meta"    // c:<chat_id>:meta
	EventKey     = "c:%s:e:%s"    // c:<chat_id>:e:<event_index>
	ThreadEvtKey = "c:%s:t:%s:e:%s" // c:<chat_id>:t:<root_index>:e:<event_index>
	MessageIdxKey = "c:%s:m:%s"   // c:<chat_id>:m:<msg_id>
	MemberKey    = "c:%s:u:%s"    // c:<chat_id>:u:<user_id>
	BlockedKey   = "c:%s:b:%s"    // c:<chat_id>:b:<user_id>

	// expiry index: events with expires_at are indexed by due time so the
	// GC runner can range-scan everything due with one bounded pass
	ExpiryKey = "exp:%s:%s:%s:%s" // exp:<due_ms>:<chat_id>:<root_index>:<event_index>

	// scheduled hard-delete of a soft-deleted message payload
	PurgeKey = "gc:purge:%s:%s:%s" // gc:purge:<due_ms>:<chat_id>:<msg_id>

	// chat soft delete marker; the whole chat prefix is purged by GC
	ChatDeleteMarker = "del:c:%s" // del:c:<chat_id>

	// padding widths (fixed for lexicographic ordering)
	IndexPadWidth = 20 // e.g. %020d
	TSPadWidth    = 20

	// system keys
	SystemVersionKey = "system:version"
)

// MainLogRoot is the root-index segment used for main-log events in
// composite keys (thread roots start at 1, so 0 never collides).
const MainLogRoot types.EventIndex = 0
