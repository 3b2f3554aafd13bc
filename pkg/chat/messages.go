package chat

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// SendArgs shape a message send through the authorization gate.
type SendArgs struct {
	ID         types.MessageID
	Sender     types.UserID
	Content    models.Content
	RepliesTo  *models.ReplyContext
	ThreadRoot *types.EventIndex
	// TTL, when non-zero, makes the message disappear that many
	// milliseconds after the send.
	TTL types.TimestampMillis
	Now types.TimestampMillis
}

// SendMessage authorizes, appends and notifies. Members who have not
// accepted the current chat rules are rejected before anything lands.
func (c *Chat) SendMessage(args SendArgs) (events.PushedMessage, error) {
	m, err := c.writeGate(args.Sender, args.Now)
	if err != nil {
		return events.PushedMessage{}, err
	}
	meta := c.log.Meta()
	if meta.RulesVersion > 0 && m.RulesAccepted < meta.RulesVersion {
		return events.PushedMessage{}, fmt.Errorf("chat rules v%d not accepted: %w", meta.RulesVersion, models.ErrNotAuthorized)
	}

	var expires *types.TimestampMillis
	if args.TTL > 0 {
		e := args.Now + args.TTL
		expires = &e
	}
	r, err := c.log.PushMessage(events.MessageArgs{
		ID:         args.ID,
		Sender:     args.Sender,
		Content:    args.Content,
		RepliesTo:  args.RepliesTo,
		ThreadRoot: args.ThreadRoot,
		MinVisible: m.MinVisibleEventIndex,
		ExpiresAt:  expires,
		Now:        args.Now,
	})
	if err != nil {
		return events.PushedMessage{}, err
	}
	if !r.Duplicate {
		telemetry.MessagesSent.Inc()
		c.published(r.EventIndex, r.ThreadRoot, models.EventMessage, args.Sender, args.Now)
	}
	return r, nil
}

// EditMessage replaces a message's content. Senders edit their own;
// moderators and above edit anyone's.
func (c *Chat) EditMessage(user types.UserID, id types.MessageID, content models.Content, now types.TimestampMillis) error {
	m, err := c.writeGate(user, now)
	if err != nil {
		return err
	}
	return c.log.EditMessage(id, user, m.Role.CanModerate(), content, now)
}

// DeleteMessage soft-deletes a message. Senders delete their own;
// moderators and above delete anyone's.
func (c *Chat) DeleteMessage(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	m, err := c.writeGate(user, now)
	if err != nil {
		return err
	}
	return c.log.DeleteMessage(id, user, m.Role.CanModerate(), now)
}

// UndeleteMessage reverses the caller's own soft delete within grace.
func (c *Chat) UndeleteMessage(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.UndeleteMessage(id, user, now)
}

// DeletedMessageContent returns the retained payload of the caller's
// own soft-deleted message during the grace window.
func (c *Chat) DeletedMessageContent(user types.UserID, id types.MessageID) (models.Content, error) {
	return c.log.DeletedContent(id, user)
}

// AddReaction / RemoveReaction toggle the caller's reaction. Both
// halves notify with the index of their own audit event.
func (c *Chat) AddReaction(user types.UserID, id types.MessageID, reaction string, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	idx, err := c.log.AddReaction(id, user, reaction, now)
	if err != nil {
		return err
	}
	c.published(idx, keys.MainLogRoot, models.EventReactionAdded, user, now)
	return nil
}

func (c *Chat) RemoveReaction(user types.UserID, id types.MessageID, reaction string, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	idx, err := c.log.RemoveReaction(id, user, reaction, now)
	if err != nil {
		return err
	}
	c.published(idx, keys.MainLogRoot, models.EventReactionRemoved, user, now)
	return nil
}

// RegisterVote records the caller's vote on a proposal message.
func (c *Chat) RegisterVote(user types.UserID, id types.MessageID, adopt bool, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.RegisterVote(id, user, adopt, now)
}

// Trade transitions, gated. The reserve/accept/complete calls bracket
// the external ledger transfers driven by the shard runtime.

func (c *Chat) ReserveTrade(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.ReserveTrade(id, user, now)
}

func (c *Chat) UnreserveTrade(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.UnreserveTrade(id, user, now)
}

func (c *Chat) AcceptTrade(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.AcceptTrade(id, user, now)
}

func (c *Chat) CompleteTrade(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.CompleteTrade(id, user, now)
}

func (c *Chat) CancelTrade(user types.UserID, id types.MessageID, now types.TimestampMillis) error {
	if _, err := c.writeGate(user, now); err != nil {
		return err
	}
	return c.log.CancelTrade(id, user, now)
}
