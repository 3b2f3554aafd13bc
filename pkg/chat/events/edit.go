package events

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// EditMessage replaces a message's content, pushing the prior content
// onto the edit history. The original sender may edit their own
// message; asModerator permits editing other users' messages, with the
// role check done at the chat layer. Deleted messages and
// trade/proposal content are not editable. Appends a message_edited
// audit event.
func (l *Log) EditMessage(id types.MessageID, editor types.UserID, asModerator bool, content models.Content, now types.TimestampMillis) error {
	if contentVariants(content) != 1 {
		return fmt.Errorf("%w: content must have exactly one variant", models.ErrInvalid)
	}
	if content.Trade != nil || content.Proposal != nil {
		return fmt.Errorf("%w: trade and proposal content cannot be set by edit", models.ErrInvalid)
	}
	_, _, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if !asModerator && msg.Sender != editor {
			return mutation{}, fmt.Errorf("only the sender or a moderator may edit: %w", models.ErrNotAuthorized)
		}
		if msg.Deleted != nil {
			return mutation{}, fmt.Errorf("message %s deleted: %w", id, models.ErrNotFound)
		}
		if msg.Content.Trade != nil || msg.Content.Proposal != nil {
			return mutation{}, fmt.Errorf("%w: trade and proposal messages are not editable", models.ErrInvalid)
		}
		msg.Edits = append(msg.Edits, models.EditRevision{
			Content:  msg.Content,
			EditedAt: now,
			EditedBy: editor,
		})
		msg.Content = content
		return mutation{audit: &models.EventPayload{
			MessageEdited: &models.MessageRefEvent{User: editor, Message: id},
		}}, nil
	})
	if err != nil {
		return err
	}
	logger.Info("message_edited", "chat", l.chat, "message", id, "editor", editor)
	return nil
}
