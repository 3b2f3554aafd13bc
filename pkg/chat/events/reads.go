package events

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// eventKey resolves the storage key for an event, main log or thread.
func (l *Log) eventKey(root, idx types.EventIndex) string {
	if root == keys.MainLogRoot {
		return keys.GenEventKey(l.chat, idx)
	}
	return keys.GenThreadEventKey(l.chat, root, idx)
}

// load fetches and decodes one event wrapper.
func (l *Log) load(root, idx types.EventIndex) (*models.EventWrapper, error) {
	data, err := l.store.Get(l.eventKey(root, idx))
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("event %d: %w", idx, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var w models.EventWrapper
	if err := codec.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid event record: %w", err)
	}
	return &w, nil
}

// GetByIndex returns the main-log event at idx. Events below the
// caller's visibility floor are withheld as if absent.
func (l *Log) GetByIndex(idx types.EventIndex, minVisible types.EventIndex) (*models.EventWrapper, error) {
	if idx < minVisible {
		return nil, fmt.Errorf("event %d: %w", idx, models.ErrNotFound)
	}
	return l.load(keys.MainLogRoot, idx)
}

// GetThreadEvent returns the event at idx in the thread rooted at root.
// Thread visibility follows the root: a caller who may see the root
// message may see the whole thread.
func (l *Log) GetThreadEvent(root, idx types.EventIndex, minVisible types.EventIndex) (*models.EventWrapper, error) {
	if root < minVisible {
		return nil, fmt.Errorf("thread %d: %w", root, models.ErrNotFound)
	}
	return l.load(root, idx)
}

// locator resolves a message id to its log position via the dedup index.
func (l *Log) locator(id types.MessageID) (*models.MessageLocator, error) {
	data, err := l.store.Get(keys.GenMessageIdxKey(l.chat, id))
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var loc models.MessageLocator
	if err := codec.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("invalid message locator: %w", err)
	}
	return &loc, nil
}

// GetByMessageID resolves a message id to its wrapped event, main log or
// thread, applying the caller's visibility floor.
func (l *Log) GetByMessageID(id types.MessageID, minVisible types.EventIndex) (*models.EventWrapper, *models.MessageLocator, error) {
	loc, err := l.locator(id)
	if err != nil {
		return nil, nil, err
	}
	visibleAt := loc.EventIndex
	if loc.ThreadRoot != keys.MainLogRoot {
		visibleAt = loc.ThreadRoot
	}
	if visibleAt < minVisible {
		return nil, nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
	}
	w, err := l.load(loc.ThreadRoot, loc.EventIndex)
	if err != nil {
		return nil, nil, err
	}
	return w, loc, nil
}

// RangeArgs shapes a paged read over a log or sub-log.
type RangeArgs struct {
	// Start is the first index considered, inclusive. Zero means "from
	// the tail" when descending and "from the beginning" when ascending.
	Start      types.EventIndex
	Ascending  bool
	MaxEvents  int
	MaxBytes   int
	MinVisible types.EventIndex
}

// DefaultMaxEvents bounds a paged read when the caller passes no count.
const DefaultMaxEvents = 100

// Range returns up to MaxEvents main-log events starting at Start,
// walking in the requested direction. Events below MinVisible are
// withheld; indices inside the page that belonged to withheld or
// expired events simply don't appear, the caller sees the gap.
func (l *Log) Range(args RangeArgs) ([]models.EventWrapper, error) {
	return l.rangeLog(keys.MainLogRoot, args)
}

// RangeThread pages over a thread sub-log. Visibility is checked against
// the root index only.
func (l *Log) RangeThread(root types.EventIndex, args RangeArgs) ([]models.EventWrapper, error) {
	if root < args.MinVisible {
		return nil, fmt.Errorf("thread %d: %w", root, models.ErrNotFound)
	}
	args.MinVisible = 0
	return l.rangeLog(root, args)
}

func (l *Log) rangeLog(root types.EventIndex, args RangeArgs) ([]models.EventWrapper, error) {
	prefix := keys.GenEventPrefix(l.chat)
	if root != keys.MainLogRoot {
		prefix = keys.GenThreadPrefix(l.chat, root)
	}
	maxEvents := args.MaxEvents
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	start := args.Start
	if args.Ascending && start < args.MinVisible {
		start = args.MinVisible
	}

	// seed the strictly-after/before cursor from the start index
	var after string
	if args.Ascending {
		if start > 0 {
			after = l.eventKey(root, start-1)
		}
	} else {
		if start > 0 {
			after = l.eventKey(root, start+1)
		}
	}

	var out []models.EventWrapper
	for len(out) < maxEvents {
		entries, more, err := l.store.RangeScan(prefix, after, args.Ascending, args.MaxBytes)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			var w models.EventWrapper
			if err := codec.Unmarshal(e.Value, &w); err != nil {
				return nil, fmt.Errorf("invalid event record at %s: %w", e.Key, err)
			}
			if w.Index < args.MinVisible {
				if !args.Ascending {
					return out, nil
				}
				continue
			}
			out = append(out, w)
			if len(out) >= maxEvents {
				return out, nil
			}
		}
		if !more {
			break
		}
		after = entries[len(entries)-1].Key
	}
	return out, nil
}
