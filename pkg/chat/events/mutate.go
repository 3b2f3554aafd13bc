package events

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// mutation is what a message mutation stages besides the rewritten
// event: an optional audit event appended to the main log, and optional
// extra writes (expiry/purge index entries) in the same batch.
type mutation struct {
	audit *models.EventPayload
	stage func(*pebble.Batch) error
}

// updateMessage loads the event holding message id, applies fn to the
// message in place, and persists the rewritten event plus the mutation's
// audit event and extra writes in one atomic batch. If fn returns an
// error nothing is written. Mutations never change the event's index or
// timestamp; ordering is fixed at append time. The returned index is
// the audit event's, zero when the mutation staged none.
func (l *Log) updateMessage(id types.MessageID, now types.TimestampMillis, fn func(*models.Message, *models.MessageLocator) (mutation, error)) (*models.MessageLocator, types.EventIndex, error) {
	loc, err := l.locator(id)
	if err != nil {
		return nil, 0, err
	}
	w, err := l.load(loc.ThreadRoot, loc.EventIndex)
	if err != nil {
		return nil, 0, err
	}
	msg := w.Event.Message
	if msg == nil {
		return nil, 0, fmt.Errorf("event %d is not a message: %w", loc.EventIndex, models.ErrInvalid)
	}

	mut, err := fn(msg, loc)
	if err != nil {
		return loc, 0, err
	}
	msg.LastUpdated = now

	batch := l.store.NewBatch()
	data, err := codec.Marshal(w)
	if err != nil {
		return loc, 0, fmt.Errorf("marshal event: %w", err)
	}
	if err := batch.Set([]byte(l.eventKey(loc.ThreadRoot, loc.EventIndex)), data, nil); err != nil {
		return loc, 0, err
	}
	var auditIdx types.EventIndex
	if mut.audit != nil {
		auditIdx, err = l.stageEvent(batch, PushArgs{Payload: *mut.audit, Now: now})
		if err != nil {
			return loc, 0, err
		}
	}
	if mut.stage != nil {
		if err := mut.stage(batch); err != nil {
			return loc, 0, err
		}
	}
	if err := l.stageMeta(batch, now); err != nil {
		return loc, 0, err
	}
	if err := l.store.Apply(batch, true); err != nil {
		return loc, 0, err
	}
	return loc, auditIdx, nil
}

// purgeDue returns the hard-delete due time for a soft delete at ts.
func purgeDue(ts types.TimestampMillis) types.TimestampMillis {
	return ts + DeleteGraceMillis
}

// DeleteGraceMillis is the window between a soft delete and the
// physical purge of the message payload. Within it the deleter can
// still undelete.
const DeleteGraceMillis types.TimestampMillis = 5 * 60 * 1000
