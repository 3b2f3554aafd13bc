package members

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// ChangeRoleArgs shape a role change. PlatformModerator marks an actor
// acting with platform-level authority rather than their chat role.
type ChangeRoleArgs struct {
	Actor             types.UserID
	Target            types.UserID
	NewRole           models.Role
	PlatformModerator bool
	Now               types.TimestampMillis
}

// RoleChange reports the transition applied, for the audit event.
type RoleChange struct {
	OldRole models.Role
	NewRole models.Role
}

// ChangeRole moves target to NewRole, enforcing the role lattice: an
// actor can only act on members they outrank or equal-and-below their
// own rank ceiling, never promote above their own role, and only an
// owner may assign or remove ownership. A platform moderator bypasses
// the lattice entirely.
func (t *Table) ChangeRole(args ChangeRoleArgs) (*RoleChange, error) {
	if !args.NewRole.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", models.ErrInvalid, args.NewRole)
	}
	target, err := t.Get(args.Target)
	if err != nil {
		return nil, err
	}
	if target.Role == args.NewRole {
		return nil, fmt.Errorf("already %s: %w", args.NewRole, models.ErrUnchanged)
	}

	if !args.PlatformModerator {
		actor, err := t.Get(args.Actor)
		if err != nil {
			return nil, err
		}
		if actor.IsSuspended(args.Now) {
			return nil, fmt.Errorf("actor %s: %w", args.Actor, models.ErrSuspended)
		}
		if actor.Lapsed {
			return nil, fmt.Errorf("actor %s lapsed: %w", args.Actor, models.ErrNotAuthorized)
		}
		if !actor.Role.AtLeast(models.RoleAdmin) {
			return nil, fmt.Errorf("role %s cannot change roles: %w", actor.Role, models.ErrNotAuthorized)
		}
		// never act on someone above you
		if target.Role.Outranks(actor.Role) {
			return nil, fmt.Errorf("target outranks actor: %w", models.ErrNotAuthorized)
		}
		// never hand out more than you hold
		if args.NewRole.Outranks(actor.Role) {
			return nil, fmt.Errorf("cannot promote above own role: %w", models.ErrNotAuthorized)
		}
		// ownership moves only between owners
		if (target.Role == models.RoleOwner || args.NewRole == models.RoleOwner) && actor.Role != models.RoleOwner {
			return nil, fmt.Errorf("only an owner may assign or remove ownership: %w", models.ErrNotAuthorized)
		}
	}

	old := target.Role
	if _, err := t.update(args.Target, func(m *models.Member) error {
		m.Role = args.NewRole
		return nil
	}); err != nil {
		return nil, err
	}
	logger.Info("role_changed", "chat", t.chat, "target", args.Target,
		"old", string(old), "new", string(args.NewRole), "actor", args.Actor)
	return &RoleChange{OldRole: old, NewRole: args.NewRole}, nil
}
