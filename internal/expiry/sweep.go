package expiry

import (
	"context"
	"errors"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// SweepStats summarizes one GC sweep.
type SweepStats struct {
	ExpiredEvents  int
	PurgedMessages int
	PurgedChats    int
	DeletedKeys    int
}

const sweepPageSize = 500

// sweepExpiredEvents walks the expiry index in due order and drops each
// event whose deadline has passed: the record itself, its message-id
// index entry if it carried a message, and the index key. Due order is
// key order (the due timestamp is the key's first, zero-padded field),
// so the walk stops at the first future entry.
func (m *Manager) sweepExpiredEvents(now types.TimestampMillis, stats *SweepStats) error {
	for {
		var page []string
		err := m.rt.Runner().Execute(func() error {
			var err error
			page, err = m.rt.Store.ListKeys(keys.GenExpiryPrefix(), sweepPageSize)
			return err
		})
		if err != nil {
			return err
		}
		done := true
		var processed int
		err = m.rt.Runner().Execute(func() error {
			for _, k := range page {
				parts, err := keys.ParseExpiryKey(k)
				if err != nil {
					logger.Warn("gc_bad_expiry_key", "key", k, "error", err)
					if err := m.rt.Store.Delete(k); err != nil {
						return err
					}
					processed++
					continue
				}
				if parts.Due > now {
					return nil
				}
				if err := m.dropExpiredEvent(parts); err != nil {
					return err
				}
				stats.ExpiredEvents++
				processed++
			}
			done = len(page) < sweepPageSize
			return nil
		})
		if err != nil {
			return err
		}
		if processed < len(page) || done {
			return nil
		}
	}
}

// dropExpiredEvent removes one expired event and its index entries in a
// single batch. Log tails are left where they are; indices are never
// reused, so a hole in the sequence is fine.
func (m *Manager) dropExpiredEvent(parts *keys.ExpiryKeyParts) error {
	evKey := keys.GenEventKey(parts.Chat, parts.Index)
	if parts.Root != keys.MainLogRoot {
		evKey = keys.GenThreadEventKey(parts.Chat, parts.Root, parts.Index)
	}
	expKey := keys.GenExpiryKey(parts.Due, parts.Chat, parts.Root, parts.Index)

	batch := m.rt.Store.NewBatch()
	data, err := m.rt.Store.Get(evKey)
	switch {
	case store.IsNotFound(err):
		// already gone (chat purged or migrated); just drop the index
	case err != nil:
		return err
	default:
		var w models.EventWrapper
		if err := codec.Unmarshal(data, &w); err != nil {
			logger.Warn("gc_undecodable_event", "key", evKey, "error", err)
		} else if msg := w.Event.Message; msg != nil {
			if err := batch.Delete([]byte(keys.GenMessageIdxKey(parts.Chat, msg.ID)), nil); err != nil {
				return err
			}
		}
		if err := batch.Delete([]byte(evKey), nil); err != nil {
			return err
		}
	}
	if err := batch.Delete([]byte(expKey), nil); err != nil {
		return err
	}
	if err := m.rt.Store.Apply(batch, true); err != nil {
		return err
	}
	logger.Debug("event_expired", "chat", parts.Chat, "root", uint64(parts.Root), "index", uint64(parts.Index))
	return nil
}

// sweepDuePurges executes scheduled hard deletes whose grace period has
// passed. The purge re-checks the message is still deleted, so a raced
// undelete wins and the job is simply dropped.
func (m *Manager) sweepDuePurges(now types.TimestampMillis, stats *SweepStats) error {
	for {
		var page []string
		err := m.rt.Runner().Execute(func() error {
			var err error
			page, err = m.rt.Store.ListKeys(keys.GenPurgePrefix(), sweepPageSize)
			return err
		})
		if err != nil {
			return err
		}
		done := true
		var processed int
		err = m.rt.Runner().Execute(func() error {
			for _, k := range page {
				parts, err := keys.ParsePurgeKey(k)
				if err != nil {
					logger.Warn("gc_bad_purge_key", "key", k, "error", err)
					if err := m.rt.Store.Delete(k); err != nil {
						return err
					}
					processed++
					continue
				}
				if parts.Due > now {
					return nil
				}
				if err := m.purgeOne(parts, now); err != nil {
					return err
				}
				stats.PurgedMessages++
				processed++
			}
			done = len(page) < sweepPageSize
			return nil
		})
		if err != nil {
			return err
		}
		if processed < len(page) || done {
			return nil
		}
	}
}

func (m *Manager) purgeOne(parts *keys.PurgeKeyParts, now types.TimestampMillis) error {
	log, err := events.Open(m.rt.Store, parts.Chat)
	switch {
	case errors.Is(err, models.ErrNotFound):
		// chat deleted or migrated away; drop the orphan job
	case err != nil:
		return err
	default:
		err = log.PurgeMessage(parts.Message, now)
		if err != nil && !errors.Is(err, models.ErrUnchanged) && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	return m.rt.Store.Delete(keys.GenPurgeKey(parts.Due, parts.Chat, parts.Message))
}

// sweepDeletedChats removes the key ranges of soft-deleted chats once
// their grace period is over. Deletion runs in bounded batches, one
// turn each, paced by the limiter so foreground turns keep flowing.
// Markers left by migration (no meta record remains) purge immediately.
func (m *Manager) sweepDeletedChats(now types.TimestampMillis, stats *SweepStats) error {
	var markers []string
	err := m.rt.Runner().Execute(func() error {
		var err error
		markers, err = m.rt.Store.ListKeys(keys.GenChatDeletePrefix(), 0)
		return err
	})
	if err != nil {
		return err
	}
	for _, marker := range markers {
		id, err := keys.ParseChatDeleteMarker(marker)
		if err != nil {
			logger.Warn("gc_bad_delete_marker", "key", marker, "error", err)
			continue
		}
		purged, deleted, err := m.purgeChat(id, now)
		if err != nil {
			return err
		}
		stats.DeletedKeys += deleted
		if purged {
			stats.PurgedChats++
		}
	}
	return nil
}

func (m *Manager) purgeChat(id types.ChatID, now types.TimestampMillis) (bool, int, error) {
	inGrace := false
	err := m.rt.Runner().Execute(func() error {
		data, err := m.rt.Store.Get(keys.GenChatMetaKey(id))
		if store.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		var meta models.ChatMeta
		if err := codec.Unmarshal(data, &meta); err != nil {
			return nil
		}
		if meta.Deleted && now < meta.DeletedTS+events.DeleteGraceMillis {
			inGrace = true
		}
		return nil
	})
	if err != nil || inGrace {
		return false, 0, err
	}

	prefix := keys.GenChatPrefix(id)
	var total int
	for {
		if m.limiter != nil {
			if err := m.limiter.WaitN(context.Background(), m.opts.DeleteBatch); err != nil {
				return false, total, err
			}
		}
		var batch []string
		err := m.rt.Runner().Execute(func() error {
			ks, err := m.rt.Store.ListKeys(prefix, m.opts.DeleteBatch)
			if err != nil {
				return err
			}
			batch = ks
			if len(batch) == 0 {
				return nil
			}
			b := m.rt.Store.NewBatch()
			for _, k := range batch {
				if err := b.Delete([]byte(k), nil); err != nil {
					return err
				}
			}
			return m.rt.Store.Apply(b, true)
		})
		if err != nil {
			return false, total, err
		}
		total += len(batch)
		if len(batch) < m.opts.DeleteBatch {
			break
		}
	}

	err = m.rt.Runner().Execute(func() error {
		return m.rt.Store.Delete(keys.GenChatDeleteMarker(id))
	})
	if err != nil {
		return false, total, err
	}
	logger.Info("chat_purged", "chat", id, "keys", total)
	return true, total, nil
}
