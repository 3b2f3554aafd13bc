package models

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Role is a chat member's role in the permission lattice.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// rank orders the lattice: owner > admin > moderator > member.
func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleModerator:
		return 1
	case RoleMember:
		return 0
	}
	return -1
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() >= 0 }

// Outranks reports whether r is strictly above other in the lattice.
func (r Role) Outranks(other Role) bool { return r.rank() > other.rank() }

// AtLeast reports whether r is at or above other in the lattice.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() }

// CanModerate reports whether the role may act on other users' messages.
func (r Role) CanModerate() bool { return r.rank() >= RoleModerator.rank() }

// Member is one user's membership record in a chat. The min_visible_*
// fields form the visibility window: fixed at join time from the chat's
// history flag and the log tail, never retroactively lowered.
type Member struct {
	V                 uint8                  `cbor:"v"`
	User              types.UserID           `cbor:"u"`
	Role              Role                   `cbor:"r"`
	Joined            types.TimestampMillis  `cbor:"j"`
	MinVisibleEventIndex   types.EventIndex   `cbor:"mve"`
	MinVisibleMessageIndex types.MessageIndex `cbor:"mvm"`
	Suspended         bool                   `cbor:"sus,omitempty"`
	SuspendedUntil    *types.TimestampMillis `cbor:"su,omitempty"`
	Lapsed            bool                   `cbor:"lap,omitempty"`
	NotificationsMuted bool                  `cbor:"nm,omitempty"`
	RulesAccepted     uint32                 `cbor:"ra,omitempty"`
}

// MemberSchemaVersion is written into every new Member record.
const MemberSchemaVersion = 1

// IsSuspended reports whether the member is suspended at now; a
// time-bounded suspension ends when SuspendedUntil passes.
func (m *Member) IsSuspended(now types.TimestampMillis) bool {
	if !m.Suspended {
		return false
	}
	if m.SuspendedUntil != nil && now >= *m.SuspendedUntil {
		return false
	}
	return true
}
