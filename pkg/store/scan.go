package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
)

// Entry is one key/value pair returned by a range scan.
type Entry struct {
	Key   string
	Value []byte
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, or nil when no such bound exists.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store) prefixIter(prefix string) (*pebble.Iterator, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened; call store.Open first")
	}
	p := []byte(prefix)
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: p,
		UpperBound: prefixUpperBound(p),
	})
}

// RangeScan returns entries under prefix, strictly after `after` when
// ascending (strictly before when descending), bounded by maxBytes of
// key+value payload so one read can never exceed a response budget.
// The second return reports whether more entries remain.
func (s *Store) RangeScan(prefix, after string, ascending bool, maxBytes int) ([]Entry, bool, error) {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return nil, false, err
	}
	defer iter.Close()

	if maxBytes <= 0 {
		maxBytes = DefaultScanBudget
	}

	var out []Entry
	var used int
	advance := func() bool {
		if ascending {
			return iter.Next()
		}
		return iter.Prev()
	}

	var ok bool
	if ascending {
		if after != "" {
			ok = iter.SeekGE(append([]byte(after), 0))
		} else {
			ok = iter.First()
		}
	} else {
		if after != "" {
			ok = iter.SeekLT([]byte(after))
		} else {
			ok = iter.Last()
		}
	}
	for ; ok; ok = advance() {
		k := append([]byte(nil), iter.Key()...)
		v := append([]byte(nil), iter.Value()...)
		if used+len(k)+len(v) > maxBytes && len(out) > 0 {
			return out, true, iter.Error()
		}
		used += len(k) + len(v)
		out = append(out, Entry{Key: string(k), Value: v})
	}
	return out, false, iter.Error()
}

// DefaultScanBudget bounds a range scan when the caller passes no byte
// budget. Matches the cross-shard response-size limit.
const DefaultScanBudget = 1 << 20

// ListKeys returns up to limit keys under prefix in ascending order
// (all of them when limit <= 0).
func (s *Store) ListKeys(prefix string, limit int) ([]string, error) {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for ok := iter.First(); ok; ok = iter.Next() {
		out = append(out, string(append([]byte(nil), iter.Key()...)))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// DeletePrefix removes every key under prefix in batches of batchSize,
// returning the number of keys deleted. Used by GC to purge a chat as a
// bounded prefix range-delete rather than one huge write.
func (s *Store) DeletePrefix(prefix string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var deleted int
	for {
		keys, err := s.ListKeys(prefix, batchSize)
		if err != nil {
			return deleted, err
		}
		if len(keys) == 0 {
			return deleted, nil
		}
		batch := s.NewBatch()
		for _, k := range keys {
			if err := batch.Delete([]byte(k), nil); err != nil {
				return deleted, err
			}
		}
		if err := s.Apply(batch, true); err != nil {
			return deleted, err
		}
		deleted += len(keys)
		logger.Debug("delete_prefix_batch", "prefix", prefix, "deleted", len(keys))
		if len(keys) < batchSize {
			return deleted, nil
		}
	}
}

// CopyPrefix streams one byte-budgeted batch of entries under prefix,
// starting strictly after `after`, into emit. It returns the last key
// copied (the resume cursor) and whether the range is exhausted. Shard
// migration copies a chat by calling this until done.
func (s *Store) CopyPrefix(prefix, after string, maxBytes int, emit func(Entry) error) (string, bool, error) {
	entries, more, err := s.RangeScan(prefix, after, true, maxBytes)
	if err != nil {
		return after, false, err
	}
	cursor := after
	for _, e := range entries {
		if err := emit(e); err != nil {
			return cursor, false, err
		}
		cursor = e.Key
	}
	return cursor, !more, nil
}

// HasPrefix reports whether any key exists under prefix.
func (s *Store) HasPrefix(prefix string) (bool, error) {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return false, err
	}
	defer iter.Close()
	ok := iter.First()
	if err := iter.Error(); err != nil {
		return false, err
	}
	return ok, nil
}
