package events

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// DeleteMessage soft-deletes a message: the deleted marker lands
// immediately and a purge job is scheduled after the grace period. The
// marker persists forever so indices and reply references stay valid.
// asModerator permits deleting other users' messages; the role check
// happens at the chat layer before this is called.
func (l *Log) DeleteMessage(id types.MessageID, deleter types.UserID, asModerator bool, now types.TimestampMillis) error {
	_, _, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted != nil {
			return mutation{}, fmt.Errorf("message %s: %w", id, models.ErrUnchanged)
		}
		if !asModerator && msg.Sender != deleter {
			return mutation{}, fmt.Errorf("only the sender or a moderator may delete: %w", models.ErrNotAuthorized)
		}
		if msg.Content.Trade != nil && msg.Content.Trade.Status == models.TradeReserved {
			return mutation{}, fmt.Errorf("trade reservation in flight: %w", models.ErrAlreadyReserved)
		}
		msg.Deleted = &models.DeletedMarker{
			DeletedBy:   deleter,
			Timestamp:   now,
			AsModerator: asModerator,
		}
		purgeKey := keys.GenPurgeKey(purgeDue(now), l.chat, id)
		return mutation{
			audit: &models.EventPayload{
				MessageDeleted: &models.MessageRefEvent{User: deleter, Message: id},
			},
			stage: func(b *pebble.Batch) error {
				return b.Set([]byte(purgeKey), nil, nil)
			},
		}, nil
	})
	if err != nil {
		return err
	}
	logger.Info("message_deleted", "chat", l.chat, "message", id, "deleter", deleter, "moderator", asModerator)
	return nil
}

// UndeleteMessage reverses a soft delete within the grace period. Only
// the user who deleted may undelete, and only while the payload has not
// been purged. The scheduled purge job is removed.
func (l *Log) UndeleteMessage(id types.MessageID, user types.UserID, now types.TimestampMillis) error {
	_, _, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted == nil {
			return mutation{}, fmt.Errorf("message %s not deleted: %w", id, models.ErrUnchanged)
		}
		if msg.Deleted.ContentPurged {
			return mutation{}, fmt.Errorf("message %s payload purged: %w", id, models.ErrExpired)
		}
		if msg.Deleted.DeletedBy != user {
			return mutation{}, fmt.Errorf("only the deleter may undelete: %w", models.ErrNotAuthorized)
		}
		if now >= purgeDue(msg.Deleted.Timestamp) {
			return mutation{}, fmt.Errorf("grace period over: %w", models.ErrExpired)
		}
		purgeKey := keys.GenPurgeKey(purgeDue(msg.Deleted.Timestamp), l.chat, id)
		msg.Deleted = nil
		return mutation{stage: func(b *pebble.Batch) error {
			return b.Delete([]byte(purgeKey), nil)
		}}, nil
	})
	if err != nil {
		return err
	}
	logger.Info("message_undeleted", "chat", l.chat, "message", id, "user", user)
	return nil
}

// PurgeMessage physically removes a soft-deleted message's payload once
// the grace period has passed. Called by the GC sweep; it re-checks the
// message is still deleted, so an undelete that raced the sweep wins.
// The wrapper, marker and indices survive.
func (l *Log) PurgeMessage(id types.MessageID, now types.TimestampMillis) error {
	_, _, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted == nil {
			return mutation{}, fmt.Errorf("message %s no longer deleted: %w", id, models.ErrUnchanged)
		}
		if msg.Deleted.ContentPurged {
			return mutation{}, fmt.Errorf("message %s: %w", id, models.ErrUnchanged)
		}
		msg.Content = models.Content{}
		msg.Edits = nil
		msg.Reactions = nil
		msg.Deleted.ContentPurged = true
		return mutation{}, nil
	})
	if err != nil {
		return err
	}
	logger.Info("message_purged", "chat", l.chat, "message", id)
	return nil
}

// DeletedContent returns the retained payload of a soft-deleted message
// during the grace period. Only the deleter may look; after the purge
// there is nothing left to return.
func (l *Log) DeletedContent(id types.MessageID, requester types.UserID) (models.Content, error) {
	loc, err := l.locator(id)
	if err != nil {
		return models.Content{}, err
	}
	w, err := l.load(loc.ThreadRoot, loc.EventIndex)
	if err != nil {
		return models.Content{}, err
	}
	msg := w.Event.Message
	if msg == nil || msg.Deleted == nil {
		return models.Content{}, fmt.Errorf("message %s not deleted: %w", id, models.ErrNotFound)
	}
	if msg.Deleted.ContentPurged {
		return models.Content{}, fmt.Errorf("message %s payload purged: %w", id, models.ErrExpired)
	}
	if msg.Deleted.DeletedBy != requester {
		return models.Content{}, fmt.Errorf("only the deleter may view: %w", models.ErrNotAuthorized)
	}
	return msg.Content, nil
}
