package members

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// AddArgs shape a join. MinVisibleEventIndex/MinVisibleMessageIndex fix
// the new member's visibility window: zero when the chat shows history
// to new joiners, the current log tails plus one when it does not. The
// window never moves after join.
type AddArgs struct {
	User                   types.UserID
	Role                   models.Role
	Now                    types.TimestampMillis
	MinVisibleEventIndex   types.EventIndex
	MinVisibleMessageIndex types.MessageIndex
}

// VisibilityWindow computes a joiner's floor from the chat's history
// flag and its current tails.
func VisibilityWindow(historyVisible bool, latestEvent types.EventIndex, latestMessage types.MessageIndex) (types.EventIndex, types.MessageIndex) {
	if historyVisible {
		return 0, 0
	}
	return latestEvent.Incr(), latestMessage.Incr()
}

// Add creates a membership record. Blocked users cannot join; an
// existing member is a conflict, not an update.
func (t *Table) Add(args AddArgs) (*models.Member, error) {
	if err := types.ValidateUserID(args.User); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if !args.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", models.ErrInvalid, args.Role)
	}
	blocked, err := t.IsBlocked(args.User)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("user %s: %w", args.User, models.ErrBlocked)
	}
	if t.IsMember(args.User) {
		return nil, fmt.Errorf("user %s: %w", args.User, models.ErrAlreadyMember)
	}
	m := &models.Member{
		User:                   args.User,
		Role:                   args.Role,
		Joined:                 args.Now,
		MinVisibleEventIndex:   args.MinVisibleEventIndex,
		MinVisibleMessageIndex: args.MinVisibleMessageIndex,
	}
	if err := t.put(m); err != nil {
		return nil, err
	}
	logger.Info("member_added", "chat", t.chat, "user", args.User, "role", string(args.Role),
		"min_visible_event", uint64(args.MinVisibleEventIndex))
	return m, nil
}

// Remove drops user's membership record. Leaving and being removed look
// the same here; who may remove whom is decided above this layer.
func (t *Table) Remove(user types.UserID) error {
	if !t.IsMember(user) {
		return fmt.Errorf("member %s: %w", user, models.ErrNotFound)
	}
	if err := t.store.Delete(keys.GenMemberKey(t.chat, user)); err != nil {
		return err
	}
	logger.Info("member_removed", "chat", t.chat, "user", user)
	return nil
}

// Block writes a block marker and removes user's membership if present.
// The marker outlives the membership, so a blocked user cannot rejoin
// until unblocked.
func (t *Table) Block(user types.UserID) error {
	blocked, err := t.IsBlocked(user)
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
	}
	if err := t.store.Set(keys.GenBlockedKey(t.chat, user), nil); err != nil {
		return err
	}
	if t.IsMember(user) {
		if err := t.store.Delete(keys.GenMemberKey(t.chat, user)); err != nil {
			return err
		}
	}
	logger.Info("user_blocked", "chat", t.chat, "user", user)
	return nil
}

// Unblock clears the block marker; the user may join again but is not
// re-added.
func (t *Table) Unblock(user types.UserID) error {
	blocked, err := t.IsBlocked(user)
	if err != nil {
		return err
	}
	if !blocked {
		return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
	}
	if err := t.store.Delete(keys.GenBlockedKey(t.chat, user)); err != nil {
		return err
	}
	logger.Info("user_unblocked", "chat", t.chat, "user", user)
	return nil
}
