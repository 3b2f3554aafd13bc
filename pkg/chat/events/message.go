package events

import (
	"errors"
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// MessageArgs are the inputs to a message append.
type MessageArgs struct {
	ID        types.MessageID
	Sender    types.UserID
	Content   models.Content
	RepliesTo *models.ReplyContext
	// ThreadRoot, when set, appends into the thread sub-log rooted at
	// that main-log message event instead of the main log.
	ThreadRoot *types.EventIndex
	// MinVisible is the sender's visibility floor; reply pointers to
	// events below it are dropped.
	MinVisible types.EventIndex
	ExpiresAt  *types.TimestampMillis
	Now        types.TimestampMillis
}

// PushedMessage is the result of a message append. Duplicate reports an
// idempotent replay: the message id was already indexed and the original
// position is returned with no new event written.
type PushedMessage struct {
	EventIndex   types.EventIndex
	MessageIndex types.MessageIndex
	ThreadRoot   types.EventIndex
	Duplicate    bool
}

// contentVariants counts populated variants of a content union.
func contentVariants(c models.Content) int {
	n := 0
	if c.Text != nil {
		n++
	}
	if c.File != nil {
		n++
	}
	if c.Proposal != nil {
		n++
	}
	if c.Trade != nil {
		n++
	}
	return n
}

// PushMessage appends a message, assigning the next EventIndex and
// MessageIndex. Replays of an already-indexed message id return the
// original position without writing. An invalid reply context is
// dropped rather than failing the whole append.
func (l *Log) PushMessage(args MessageArgs) (PushedMessage, error) {
	if err := types.ValidateMessageID(args.ID); err != nil {
		return PushedMessage{}, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if err := types.ValidateUserID(args.Sender); err != nil {
		return PushedMessage{}, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if contentVariants(args.Content) != 1 {
		return PushedMessage{}, fmt.Errorf("%w: message content must have exactly one variant", models.ErrInvalid)
	}

	if loc, err := l.locator(args.ID); err == nil {
		logger.Debug("message_replayed", "chat", l.chat, "message", args.ID)
		return PushedMessage{
			EventIndex:   loc.EventIndex,
			MessageIndex: loc.MessageIndex,
			ThreadRoot:   loc.ThreadRoot,
			Duplicate:    true,
		}, nil
	} else if !isNotFound(err) {
		return PushedMessage{}, err
	}

	msg := &models.Message{
		ID:        args.ID,
		Sender:    args.Sender,
		Content:   args.Content,
		RepliesTo: l.checkReply(args.RepliesTo, args.MinVisible),
	}
	if args.ThreadRoot != nil {
		idx, mi, err := l.pushThread(*args.ThreadRoot, PushArgs{
			Payload:   models.EventPayload{Message: msg},
			ExpiresAt: args.ExpiresAt,
			Now:       args.Now,
		})
		if err != nil {
			return PushedMessage{}, err
		}
		return PushedMessage{EventIndex: idx, MessageIndex: mi, ThreadRoot: *args.ThreadRoot}, nil
	}

	idx, err := l.Push(PushArgs{
		Payload:   models.EventPayload{Message: msg},
		ExpiresAt: args.ExpiresAt,
		Now:       args.Now,
	})
	if err != nil {
		return PushedMessage{}, err
	}
	return PushedMessage{EventIndex: idx, MessageIndex: msg.MessageIndex, ThreadRoot: keys.MainLogRoot}, nil
}

// checkReply validates a reply context against the log; a dangling,
// out-of-range or below-floor reference is dropped so the message
// still lands.
func (l *Log) checkReply(rt *models.ReplyContext, minVisible types.EventIndex) *models.ReplyContext {
	if rt == nil {
		return nil
	}
	root := keys.MainLogRoot
	if rt.ThreadRoot != nil {
		root = *rt.ThreadRoot
	}
	if rt.EventIndex == 0 {
		logger.Warn("reply_context_dropped", "chat", l.chat, "event", uint64(rt.EventIndex))
		return nil
	}
	// the main-log anchor (the event itself, or the thread's root) must
	// sit inside the sender's visibility window
	anchor := rt.EventIndex
	if root != keys.MainLogRoot {
		anchor = root
	}
	if anchor < minVisible {
		logger.Warn("reply_context_dropped", "chat", l.chat, "event", uint64(rt.EventIndex), "floor", uint64(minVisible))
		return nil
	}
	if root == keys.MainLogRoot && rt.EventIndex > l.meta.LatestEventIndex {
		logger.Warn("reply_context_dropped", "chat", l.chat, "event", uint64(rt.EventIndex))
		return nil
	}
	if root != keys.MainLogRoot {
		if _, err := l.load(root, rt.EventIndex); err != nil {
			logger.Warn("reply_context_dropped", "chat", l.chat, "root", uint64(root), "event", uint64(rt.EventIndex))
			return nil
		}
	}
	return rt
}

func isNotFound(err error) bool {
	return store.IsNotFound(err) || errors.Is(err, models.ErrNotFound)
}
