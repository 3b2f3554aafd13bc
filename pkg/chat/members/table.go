package members

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/codec"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Table is one chat's membership records, keyed per user under the
// chat's key range. Blocked users are tracked as separate markers so a
// removed membership record doesn't forget the block.
type Table struct {
	store *store.Store
	chat  types.ChatID
}

// NewTable returns the membership table for chat.
func NewTable(s *store.Store, chat types.ChatID) *Table {
	return &Table{store: s, chat: chat}
}

// Get returns the membership record for user, ErrNotFound when absent.
func (t *Table) Get(user types.UserID) (*models.Member, error) {
	data, err := t.store.Get(keys.GenMemberKey(t.chat, user))
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("member %s: %w", user, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var m models.Member
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid member record: %w", err)
	}
	return &m, nil
}

// IsMember reports whether user has a membership record.
func (t *Table) IsMember(user types.UserID) bool {
	_, err := t.Get(user)
	return err == nil
}

func (t *Table) put(m *models.Member) error {
	m.V = models.MemberSchemaVersion
	data, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member record: %w", err)
	}
	return t.store.Set(keys.GenMemberKey(t.chat, m.User), data)
}

// update loads user's record, applies fn and writes it back. fn errors
// abort without writing.
func (t *Table) update(user types.UserID, fn func(*models.Member) error) (*models.Member, error) {
	m, err := t.Get(user)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return m, err
	}
	if err := t.put(m); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns up to limit membership records in user-id order (all of
// them when limit <= 0).
func (t *Table) List(limit int) ([]models.Member, error) {
	prefix := keys.GenMemberPrefix(t.chat)
	var out []models.Member
	after := ""
	for {
		entries, more, err := t.store.RangeScan(prefix, after, true, 0)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			var m models.Member
			if err := codec.Unmarshal(e.Value, &m); err != nil {
				return nil, fmt.Errorf("invalid member record at %s: %w", e.Key, err)
			}
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if !more || len(entries) == 0 {
			return out, nil
		}
		after = entries[len(entries)-1].Key
	}
}

// Count returns the number of membership records.
func (t *Table) Count() (int, error) {
	ks, err := t.store.ListKeys(keys.GenMemberPrefix(t.chat), 0)
	if err != nil {
		return 0, err
	}
	return len(ks), nil
}

// IsBlocked reports whether user carries a block marker in this chat.
func (t *Table) IsBlocked(user types.UserID) (bool, error) {
	_, err := t.store.Get(keys.GenBlockedKey(t.chat, user))
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Blocked returns every blocked user id.
func (t *Table) Blocked() ([]types.UserID, error) {
	ks, err := t.store.ListKeys(keys.GenBlockedPrefix(t.chat), 0)
	if err != nil {
		return nil, err
	}
	out := make([]types.UserID, 0, len(ks))
	for _, k := range ks {
		user, err := keys.ParseBlockedKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}
