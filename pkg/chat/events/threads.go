package events

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// pushThread appends one event to the thread sub-log rooted at root.
// The root must be an undeleted message event in the main log. The root
// message's ThreadSummary is the thread's meta record: its tails advance
// in the same batch as the thread event, mirroring how the chat meta
// tracks the main log.
func (l *Log) pushThread(root types.EventIndex, args PushArgs) (types.EventIndex, types.MessageIndex, error) {
	if args.Payload.Kind() == "" {
		return 0, 0, fmt.Errorf("%w: empty event payload", models.ErrInvalid)
	}
	rootWrapper, err := l.load(keys.MainLogRoot, root)
	if err != nil {
		return 0, 0, fmt.Errorf("thread root %d: %w", root, models.ErrNotFound)
	}
	rootMsg := rootWrapper.Event.Message
	if rootMsg == nil {
		return 0, 0, fmt.Errorf("%w: thread root %d is not a message", models.ErrInvalid, root)
	}
	if rootMsg.Deleted != nil {
		return 0, 0, fmt.Errorf("thread root %d: %w", root, models.ErrNotFound)
	}

	summary := rootMsg.ThreadSummary
	if summary == nil {
		summary = &models.ThreadSummary{}
		rootMsg.ThreadSummary = summary
	}

	idx := summary.LatestEventIndex.Incr()
	wrapper := models.EventWrapper{
		V:         models.EventSchemaVersion,
		Index:     idx,
		Timestamp: args.Now,
		ExpiresAt: args.ExpiresAt,
		Event:     args.Payload,
	}

	batch := l.store.NewBatch()
	var mi types.MessageIndex
	if msg := args.Payload.Message; msg != nil {
		mi = summary.LatestMessageIndex.Incr()
		msg.MessageIndex = mi
		loc := models.MessageLocator{
			V:            models.EventSchemaVersion,
			ThreadRoot:   root,
			EventIndex:   idx,
			MessageIndex: mi,
		}
		locData, err := codec.Marshal(&loc)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal message locator: %w", err)
		}
		if err := batch.Set([]byte(keys.GenMessageIdxKey(l.chat, msg.ID)), locData, nil); err != nil {
			return 0, 0, err
		}
		summary.LatestMessageIndex = mi
		summary.ReplyCount++
		summary.AddParticipant(msg.Sender)
	}
	summary.LatestEventIndex = idx
	summary.LatestEventTimestamp = args.Now

	data, err := codec.Marshal(&wrapper)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal event: %w", err)
	}
	if err := batch.Set([]byte(keys.GenThreadEventKey(l.chat, root, idx)), data, nil); err != nil {
		return 0, 0, err
	}
	if args.ExpiresAt != nil {
		if err := batch.Set([]byte(keys.GenExpiryKey(*args.ExpiresAt, l.chat, root, idx)), nil, nil); err != nil {
			return 0, 0, err
		}
	}

	// rewrite the root so the summary is visible to main-log readers
	rootData, err := codec.Marshal(rootWrapper)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal thread root: %w", err)
	}
	if err := batch.Set([]byte(keys.GenEventKey(l.chat, root)), rootData, nil); err != nil {
		return 0, 0, err
	}
	if err := l.stageMeta(batch, args.Now); err != nil {
		return 0, 0, err
	}
	if err := l.store.Apply(batch, true); err != nil {
		return 0, 0, err
	}
	logger.Debug("thread_event_appended",
		"chat", l.chat, "root", uint64(root), "index", uint64(idx), "kind", string(args.Payload.Kind()))
	return idx, mi, nil
}

// ThreadSummaryFor returns the thread summary on the root message, or
// ErrNotFound when the root has no thread.
func (l *Log) ThreadSummaryFor(root types.EventIndex, minVisible types.EventIndex) (*models.ThreadSummary, error) {
	w, err := l.GetByIndex(root, minVisible)
	if err != nil {
		return nil, err
	}
	if w.Event.Message == nil || w.Event.Message.ThreadSummary == nil {
		return nil, fmt.Errorf("thread %d: %w", root, models.ErrNotFound)
	}
	return w.Event.Message.ThreadSummary, nil
}
