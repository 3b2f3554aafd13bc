package chat

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Freeze suspends all activity in the chat. Platform-moderator action;
// the actor need not be a member. Frozen chats reject every write until
// unfrozen, reads keep working.
func (c *Chat) Freeze(actor types.UserID, reason string, now types.TimestampMillis) error {
	meta := c.log.Meta()
	if meta.Frozen {
		return fmt.Errorf("chat %s: %w", meta.ID, models.ErrUnchanged)
	}
	idx, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{ChatFrozen: &models.ChatFrozen{FrozenBy: actor, Reason: reason}},
		Now:     now,
	})
	if err != nil {
		return err
	}
	meta = c.log.Meta()
	meta.Frozen = true
	if err := c.log.SetMeta(meta, now); err != nil {
		return err
	}
	c.published(idx, keys.MainLogRoot, models.EventChatFrozen, actor, now)
	return nil
}

// Unfreeze lifts a freeze.
func (c *Chat) Unfreeze(actor types.UserID, now types.TimestampMillis) error {
	meta := c.log.Meta()
	if !meta.Frozen {
		return fmt.Errorf("chat %s: %w", meta.ID, models.ErrUnchanged)
	}
	meta.Frozen = false
	return c.log.SetMeta(meta, now)
}

// SetInviteCode toggles invite-code joining for private chats. Admin
// rank required.
func (c *Chat) SetInviteCode(actor types.UserID, enabled bool, now types.TimestampMillis) error {
	a, err := c.writeGate(actor, now)
	if err != nil {
		return err
	}
	if !a.Role.AtLeast(models.RoleAdmin) {
		return fmt.Errorf("role %s cannot manage invite codes: %w", a.Role, models.ErrNotAuthorized)
	}
	meta := c.log.Meta()
	if meta.InviteCodeEnabled == enabled {
		return fmt.Errorf("chat %s: %w", meta.ID, models.ErrUnchanged)
	}
	if _, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{InviteCodeChanged: &models.InviteCodeChanged{ChangedBy: actor, Enabled: enabled}},
		Now:     now,
	}); err != nil {
		return err
	}
	meta = c.log.Meta()
	meta.InviteCodeEnabled = enabled
	return c.log.SetMeta(meta, now)
}

// UpdateRules bumps the chat rules version; members must re-accept
// before they can send again.
func (c *Chat) UpdateRules(actor types.UserID, now types.TimestampMillis) (uint32, error) {
	a, err := c.writeGate(actor, now)
	if err != nil {
		return 0, err
	}
	if !a.Role.AtLeast(models.RoleAdmin) {
		return 0, fmt.Errorf("role %s cannot change rules: %w", a.Role, models.ErrNotAuthorized)
	}
	meta := c.log.Meta()
	meta.RulesVersion++
	if err := c.log.SetMeta(meta, now); err != nil {
		return 0, err
	}
	return meta.RulesVersion, nil
}

// AcceptRules records the caller's acceptance of the current rules and
// appends a rules_accepted event.
func (c *Chat) AcceptRules(user types.UserID, now types.TimestampMillis) error {
	meta := c.log.Meta()
	if meta.Deleted {
		return fmt.Errorf("chat %s: %w", meta.ID, models.ErrNotFound)
	}
	if err := c.members.AcceptRules(user, meta.RulesVersion); err != nil {
		return err
	}
	_, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{RulesAccepted: &models.RulesAccepted{User: user, Version: meta.RulesVersion}},
		Now:     now,
	})
	return err
}

// Delete soft-deletes the whole chat: the meta is flagged and a delete
// marker is written for the GC sweep, which later removes the chat's
// entire key range. Owner only. Reads and writes fail immediately; the
// data disappears when the sweep runs.
func (c *Chat) Delete(actor types.UserID, now types.TimestampMillis) error {
	a, err := c.members.Get(actor)
	if err != nil {
		return err
	}
	if a.Role != models.RoleOwner {
		return fmt.Errorf("only an owner may delete the chat: %w", models.ErrNotAuthorized)
	}
	meta := c.log.Meta()
	if meta.Deleted {
		return fmt.Errorf("chat %s: %w", meta.ID, models.ErrUnchanged)
	}
	meta.Deleted = true
	meta.DeletedTS = now
	if err := c.log.SetMeta(meta, now); err != nil {
		return err
	}
	return c.store.Set(keys.GenChatDeleteMarker(meta.ID), nil)
}
