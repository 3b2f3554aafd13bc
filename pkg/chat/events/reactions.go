package events

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// AddReaction adds user to the reactor set for reaction on message id
// and returns the index of the reaction_added audit event. Adding a
// reaction that is already present returns ErrUnchanged and writes
// nothing; add and remove are exact inverses, so any sequence of
// toggles converges on set membership.
func (l *Log) AddReaction(id types.MessageID, user types.UserID, reaction string, now types.TimestampMillis) (types.EventIndex, error) {
	if reaction == "" {
		return 0, fmt.Errorf("%w: empty reaction", models.ErrInvalid)
	}
	_, idx, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted != nil {
			return mutation{}, fmt.Errorf("message %s deleted: %w", id, models.ErrNotFound)
		}
		if !msg.AddReaction(reaction, user) {
			return mutation{}, fmt.Errorf("reaction already present: %w", models.ErrUnchanged)
		}
		return mutation{audit: &models.EventPayload{
			ReactionAdded: &models.ReactionEvent{User: user, Message: id, Reaction: reaction},
		}}, nil
	})
	if err != nil {
		return 0, err
	}
	logger.Debug("reaction_added", "chat", l.chat, "message", id, "user", user, "reaction", reaction)
	return idx, nil
}

// RemoveReaction removes user from the reactor set for reaction on
// message id and returns the index of the reaction_removed audit event.
// Removing an absent reaction returns ErrUnchanged.
func (l *Log) RemoveReaction(id types.MessageID, user types.UserID, reaction string, now types.TimestampMillis) (types.EventIndex, error) {
	if reaction == "" {
		return 0, fmt.Errorf("%w: empty reaction", models.ErrInvalid)
	}
	_, idx, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted != nil {
			return mutation{}, fmt.Errorf("message %s deleted: %w", id, models.ErrNotFound)
		}
		if !msg.RemoveReaction(reaction, user) {
			return mutation{}, fmt.Errorf("reaction not present: %w", models.ErrUnchanged)
		}
		return mutation{audit: &models.EventPayload{
			ReactionRemoved: &models.ReactionEvent{User: user, Message: id, Reaction: reaction},
		}}, nil
	})
	if err != nil {
		return 0, err
	}
	logger.Debug("reaction_removed", "chat", l.chat, "message", id, "user", user, "reaction", reaction)
	return idx, nil
}
