package events

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Log is one chat's append-only event log. The chat meta record caches
// the log tails and is rewritten in the same batch as every append, so
// indices stay monotonic and contiguous even across restarts.
//
// A Log is owned by a single shard turn at a time (run-to-completion
// scheduling); it holds no locks.
type Log struct {
	store *store.Store
	chat  types.ChatID
	meta  models.ChatMeta
}

// Create writes a fresh chat meta record and returns its log. Fails
// with ErrAlreadyMember-style conflict when the chat already exists.
func Create(s *store.Store, meta models.ChatMeta) (*Log, error) {
	if err := types.ValidateChatID(meta.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	metaKey := keys.GenChatMetaKey(meta.ID)
	if _, err := s.Get(metaKey); err == nil {
		return nil, fmt.Errorf("chat %s: %w", meta.ID, models.ErrUnchanged)
	} else if !store.IsNotFound(err) {
		return nil, err
	}
	meta.V = models.ChatMetaSchemaVersion
	data, err := codec.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("marshal chat meta: %w", err)
	}
	if err := s.Set(metaKey, data); err != nil {
		return nil, err
	}
	logger.Info("chat_created", "chat", meta.ID, "public", meta.Public)
	return &Log{store: s, chat: meta.ID, meta: meta}, nil
}

// Open loads an existing chat's log; ErrNotFound when absent.
func Open(s *store.Store, chat types.ChatID) (*Log, error) {
	data, err := s.Get(keys.GenChatMetaKey(chat))
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("chat %s: %w", chat, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var meta models.ChatMeta
	if err := codec.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("invalid chat meta: %w", err)
	}
	return &Log{store: s, chat: chat, meta: meta}, nil
}

// Chat returns the chat id this log belongs to.
func (l *Log) Chat() types.ChatID { return l.chat }

// Meta returns a copy of the cached chat meta record.
func (l *Log) Meta() models.ChatMeta { return l.meta }

// LatestEventIndex returns the main log tail.
func (l *Log) LatestEventIndex() types.EventIndex { return l.meta.LatestEventIndex }

// LatestMessageIndex returns the message subsequence tail.
func (l *Log) LatestMessageIndex() types.MessageIndex { return l.meta.LatestMessageIndex }

// LatestUpdate returns the incremental-sync watermark: the timestamp of
// the most recent append or mutation anywhere in the chat.
func (l *Log) LatestUpdate() types.TimestampMillis { return l.meta.LatestUpdate }

// SetMeta persists chat-level metadata changes (name, flags, rules).
func (l *Log) SetMeta(meta models.ChatMeta, now types.TimestampMillis) error {
	meta.ID = l.chat
	meta.V = models.ChatMetaSchemaVersion
	meta.LatestEventIndex = l.meta.LatestEventIndex
	meta.LatestMessageIndex = l.meta.LatestMessageIndex
	meta.LatestUpdate = now
	data, err := codec.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal chat meta: %w", err)
	}
	if err := l.store.Set(keys.GenChatMetaKey(l.chat), data); err != nil {
		return err
	}
	l.meta = meta
	return nil
}

// PushArgs are the inputs to a raw event append.
type PushArgs struct {
	Payload   models.EventPayload
	ExpiresAt *types.TimestampMillis
	Now       types.TimestampMillis
}

// Push appends an event to the main log and returns its index. If the
// payload is a Message the next MessageIndex is assigned and the
// message id is indexed for idempotent lookup.
func (l *Log) Push(args PushArgs) (types.EventIndex, error) {
	if args.Payload.Kind() == "" {
		return 0, fmt.Errorf("%w: empty event payload", models.ErrInvalid)
	}
	batch := l.store.NewBatch()
	idx, err := l.stageEvent(batch, args)
	if err != nil {
		return 0, err
	}
	if err := l.stageMeta(batch, args.Now); err != nil {
		return 0, err
	}
	if err := l.store.Apply(batch, true); err != nil {
		return 0, err
	}
	logger.Debug("event_appended", "chat", l.chat, "index", uint64(idx), "kind", string(args.Payload.Kind()))
	return idx, nil
}

// stageEvent stages the wrapper write (plus message-id index and expiry
// index entries) into batch and advances the cached tails. The caller
// must also stage the meta record and apply the batch, or discard the
// Log on failure.
func (l *Log) stageEvent(batch *pebble.Batch, args PushArgs) (types.EventIndex, error) {
	idx := l.meta.LatestEventIndex.Incr()
	wrapper := models.EventWrapper{
		V:         models.EventSchemaVersion,
		Index:     idx,
		Timestamp: args.Now,
		ExpiresAt: args.ExpiresAt,
		Event:     args.Payload,
	}
	if msg := args.Payload.Message; msg != nil {
		msg.MessageIndex = l.meta.LatestMessageIndex.Incr()
		loc := models.MessageLocator{
			V:            models.EventSchemaVersion,
			ThreadRoot:   keys.MainLogRoot,
			EventIndex:   idx,
			MessageIndex: msg.MessageIndex,
		}
		locData, err := codec.Marshal(&loc)
		if err != nil {
			return 0, fmt.Errorf("marshal message locator: %w", err)
		}
		if err := batch.Set([]byte(keys.GenMessageIdxKey(l.chat, msg.ID)), locData, nil); err != nil {
			return 0, err
		}
		l.meta.LatestMessageIndex = msg.MessageIndex
	}
	data, err := codec.Marshal(&wrapper)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	if err := batch.Set([]byte(keys.GenEventKey(l.chat, idx)), data, nil); err != nil {
		return 0, err
	}
	if args.ExpiresAt != nil {
		expKey := keys.GenExpiryKey(*args.ExpiresAt, l.chat, keys.MainLogRoot, idx)
		if err := batch.Set([]byte(expKey), nil, nil); err != nil {
			return 0, err
		}
	}
	l.meta.LatestEventIndex = idx
	return idx, nil
}

// stageMeta stages the updated chat meta record into batch.
func (l *Log) stageMeta(batch *pebble.Batch, now types.TimestampMillis) error {
	l.meta.LatestUpdate = now
	data, err := codec.Marshal(&l.meta)
	if err != nil {
		return fmt.Errorf("marshal chat meta: %w", err)
	}
	return batch.Set([]byte(keys.GenChatMetaKey(l.chat)), data, nil)
}
