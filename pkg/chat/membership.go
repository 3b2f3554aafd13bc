package chat

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/members"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Join adds user as a plain member. Private chats require the invite
// code to be enabled; the code itself is validated by the caller-facing
// layer. The joiner's visibility window is fixed here, at join time,
// from the chat's history flag and the current tails.
func (c *Chat) Join(user types.UserID, now types.TimestampMillis) (*models.Member, error) {
	meta := c.log.Meta()
	if meta.Deleted {
		return nil, fmt.Errorf("chat %s: %w", meta.ID, models.ErrNotFound)
	}
	if meta.Frozen {
		return nil, fmt.Errorf("chat %s: %w", meta.ID, models.ErrChatFrozen)
	}
	if !meta.Public && !meta.InviteCodeEnabled {
		return nil, fmt.Errorf("chat %s is invite only: %w", meta.ID, models.ErrNotAuthorized)
	}

	minE, minM := members.VisibilityWindow(meta.HistoryVisibleToNewJoiners, meta.LatestEventIndex, meta.LatestMessageIndex)
	m, err := c.members.Add(members.AddArgs{
		User:                   user,
		Role:                   models.RoleMember,
		Now:                    now,
		MinVisibleEventIndex:   minE,
		MinVisibleMessageIndex: minM,
	})
	if err != nil {
		return nil, err
	}
	idx, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{MemberJoined: &models.MemberJoined{User: user}},
		Now:     now,
	})
	if err != nil {
		return nil, err
	}
	c.published(idx, keys.MainLogRoot, models.EventMemberJoined, user, now)
	return m, nil
}

// Leave removes the caller's own membership. The last owner cannot
// leave; ownership must move first.
func (c *Chat) Leave(user types.UserID, now types.TimestampMillis) error {
	m, err := c.members.Get(user)
	if err != nil {
		return err
	}
	if m.Role == models.RoleOwner {
		others, err := c.otherOwners(user)
		if err != nil {
			return err
		}
		if !others {
			return fmt.Errorf("last owner cannot leave: %w", models.ErrInvalid)
		}
	}
	if err := c.members.Remove(user); err != nil {
		return err
	}
	idx, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{MemberLeft: &models.MemberLeft{User: user}},
		Now:     now,
	})
	if err != nil {
		return err
	}
	c.published(idx, keys.MainLogRoot, models.EventMemberLeft, user, now)
	return nil
}

// RemoveMember ejects target. The actor must hold moderator rank or
// above and outrank the target.
func (c *Chat) RemoveMember(actor, target types.UserID, now types.TimestampMillis) error {
	a, err := c.writeGate(actor, now)
	if err != nil {
		return err
	}
	t, err := c.members.Get(target)
	if err != nil {
		return err
	}
	if !a.Role.CanModerate() {
		return fmt.Errorf("role %s cannot remove members: %w", a.Role, models.ErrNotAuthorized)
	}
	if t.Role.AtLeast(a.Role) {
		return fmt.Errorf("target does not rank below actor: %w", models.ErrNotAuthorized)
	}
	if err := c.members.Remove(target); err != nil {
		return err
	}
	_, err = c.log.Push(events.PushArgs{
		Payload: models.EventPayload{MemberLeft: &models.MemberLeft{User: target}},
		Now:     now,
	})
	return err
}

// BlockUsers blocks each user, removing their membership, and appends a
// single users_blocked event. Requires admin rank; targets at or above
// the actor's rank are skipped with an error per target.
func (c *Chat) BlockUsers(actor types.UserID, targets []types.UserID, now types.TimestampMillis) (map[types.UserID]error, error) {
	a, err := c.writeGate(actor, now)
	if err != nil {
		return nil, err
	}
	if !a.Role.AtLeast(models.RoleAdmin) {
		return nil, fmt.Errorf("role %s cannot block users: %w", a.Role, models.ErrNotAuthorized)
	}

	results := make(map[types.UserID]error, len(targets))
	var blocked []types.UserID
	for _, target := range targets {
		if target == actor {
			results[target] = fmt.Errorf("cannot block self: %w", models.ErrInvalid)
			continue
		}
		if t, err := c.members.Get(target); err == nil && t.Role.AtLeast(a.Role) {
			results[target] = fmt.Errorf("target does not rank below actor: %w", models.ErrNotAuthorized)
			continue
		}
		if err := c.members.Block(target); err != nil {
			results[target] = err
			continue
		}
		results[target] = nil
		blocked = append(blocked, target)
	}
	if len(blocked) > 0 {
		idx, err := c.log.Push(events.PushArgs{
			Payload: models.EventPayload{UsersBlocked: &models.UsersBlocked{Users: blocked, BlockedBy: actor}},
			Now:     now,
		})
		if err != nil {
			return results, err
		}
		c.published(idx, keys.MainLogRoot, models.EventUsersBlocked, actor, now)
	}
	return results, nil
}

// UnblockUsers clears block markers and appends a users_unblocked event.
func (c *Chat) UnblockUsers(actor types.UserID, targets []types.UserID, now types.TimestampMillis) (map[types.UserID]error, error) {
	a, err := c.writeGate(actor, now)
	if err != nil {
		return nil, err
	}
	if !a.Role.AtLeast(models.RoleAdmin) {
		return nil, fmt.Errorf("role %s cannot unblock users: %w", a.Role, models.ErrNotAuthorized)
	}
	results := make(map[types.UserID]error, len(targets))
	var unblocked []types.UserID
	for _, target := range targets {
		if err := c.members.Unblock(target); err != nil {
			results[target] = err
			continue
		}
		results[target] = nil
		unblocked = append(unblocked, target)
	}
	if len(unblocked) > 0 {
		if _, err := c.log.Push(events.PushArgs{
			Payload: models.EventPayload{UsersUnblocked: &models.UsersUnblocked{Users: unblocked, UnblockedBy: actor}},
			Now:     now,
		}); err != nil {
			return results, err
		}
	}
	return results, nil
}

// ChangeRole moves target to newRole under the lattice rules and logs a
// role_changed event.
func (c *Chat) ChangeRole(actor, target types.UserID, newRole models.Role, platformModerator bool, now types.TimestampMillis) error {
	if !platformModerator {
		if _, err := c.writeGate(actor, now); err != nil {
			return err
		}
	}
	ch, err := c.members.ChangeRole(members.ChangeRoleArgs{
		Actor:             actor,
		Target:            target,
		NewRole:           newRole,
		PlatformModerator: platformModerator,
		Now:               now,
	})
	if err != nil {
		return err
	}
	idx, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{RoleChanged: &models.RoleChanged{
			User: target, ChangedBy: actor, OldRole: ch.OldRole, NewRole: ch.NewRole,
		}},
		Now: now,
	})
	if err != nil {
		return err
	}
	c.published(idx, keys.MainLogRoot, models.EventRoleChanged, actor, now)
	return nil
}

// otherOwners reports whether any owner besides user exists.
func (c *Chat) otherOwners(user types.UserID) (bool, error) {
	all, err := c.members.List(0)
	if err != nil {
		return false, err
	}
	for _, m := range all {
		if m.Role == models.RoleOwner && m.User != user {
			return true, nil
		}
	}
	return false, nil
}
