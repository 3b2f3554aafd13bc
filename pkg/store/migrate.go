package store

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
)

// Schema upgrades run once at open. Records themselves are forward and
// backward compatible (unknown CBOR fields are ignored, missing fields
// default), so migrations exist only for key-layout changes, not for
// per-record field churn.

const currentSchemaVersion = "1"

type migration struct {
	from, to string
	run      func(s *Store) error
}

var migrations = []migration{
	// none yet; the slice shape matches how upgrades will be added
}

// Upgrade brings the store's schema-version key up to date, running any
// pending migrations in order. Safe to call on every open.
func (s *Store) Upgrade() error {
	stored, err := s.Get(keys.SystemVersionKey)
	if IsNotFound(err) {
		// fresh database
		if err := s.Set(keys.SystemVersionKey, []byte(currentSchemaVersion)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := string(stored)
	for _, m := range migrations {
		if m.from != version {
			continue
		}
		logger.Info("migration_start", "from", m.from, "to", m.to)
		if err := m.run(s); err != nil {
			logger.Error("migration_failed", "from", m.from, "to", m.to, "error", err)
			return err
		}
		if err := s.Set(keys.SystemVersionKey, []byte(m.to)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		version = m.to
		logger.Info("migration_done", "version", version)
	}
	if version != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version %q (want %q)", version, currentSchemaVersion)
	}
	return nil
}
