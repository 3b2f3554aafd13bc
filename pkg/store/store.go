package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
)

// Store is the single ordered key-value store shared by every entity
// family in a shard. Keys are typed and prefixed (see pkg/store/keys) so
// each family can be range-scanned without collision, and a chat's whole
// state is one contiguous key range.
type Store struct {
	db          *pebble.DB
	path        string
	walDisabled bool
}

// Options controls durability settings at open time.
type Options struct {
	DisableWAL bool
}

// Open opens (or creates) the pebble database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.DisableWAL {
		logger.Warn("durability_disabled", "path", path)
	}
	db, err := pebble.Open(path, &pebble.Options{DisableWAL: opts.DisableWAL})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db, path: path, walDisabled: opts.DisableWAL}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	return nil
}

// Ready reports whether the store is opened.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

// Path returns the on-disk database path.
func (s *Store) Path() string { return s.path }

// IsNotFound reports whether err is the store's missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

// writeOpt chooses sync/no-sync, always no-sync when the WAL is off.
func (s *Store) writeOpt(requestSync bool) *pebble.WriteOptions {
	if requestSync && !s.walDisabled {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Get returns the raw value for key.
func (s *Store) Get(key string) ([]byte, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened; call store.Open first")
	}
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
		} else {
			logger.Error("get_key_failed", "key", key, "error", err)
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// Set stores a key/value pair.
func (s *Store) Set(key string, value []byte) error {
	if s.db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	if err := s.db.Set([]byte(key), value, s.writeOpt(true)); err != nil {
		logger.Error("save_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("save_key_ok", "key", key, "len", len(value))
	return nil
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	if s.db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	if err := s.db.Delete([]byte(key), s.writeOpt(true)); err != nil {
		logger.Error("delete_key_failed", "key", key, "error", err)
		return err
	}
	logger.Debug("delete_key_ok", "key", key)
	return nil
}

// NewBatch returns an empty write batch.
func (s *Store) NewBatch() *pebble.Batch {
	return s.db.NewBatch()
}

// Apply applies a batch atomically; sync forces fsync unless WAL is off.
func (s *Store) Apply(batch *pebble.Batch, sync bool) error {
	if s.db == nil {
		return fmt.Errorf("store not opened; call store.Open first")
	}
	if err := s.db.Apply(batch, s.writeOpt(sync)); err != nil {
		logger.Error("pebble_apply_batch_failed", "error", err)
		return err
	}
	return nil
}
