package members

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Suspend marks user suspended, optionally until a deadline. Suspended
// members keep their record and visibility window but fail every write
// authorization until unsuspended or the deadline passes.
func (t *Table) Suspend(user types.UserID, until *types.TimestampMillis) error {
	_, err := t.update(user, func(m *models.Member) error {
		if m.Suspended {
			return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
		}
		m.Suspended = true
		m.SuspendedUntil = until
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("member_suspended", "chat", t.chat, "user", user)
	return nil
}

// Unsuspend clears a suspension.
func (t *Table) Unsuspend(user types.UserID) error {
	_, err := t.update(user, func(m *models.Member) error {
		if !m.Suspended {
			return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
		}
		m.Suspended = false
		m.SuspendedUntil = nil
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("member_unsuspended", "chat", t.chat, "user", user)
	return nil
}

// SetLapsed flips the gate-lapse flag; a lapsed member reads but cannot
// write until they re-pass the access gate.
func (t *Table) SetLapsed(user types.UserID, lapsed bool) error {
	_, err := t.update(user, func(m *models.Member) error {
		if m.Lapsed == lapsed {
			return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
		}
		m.Lapsed = lapsed
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("member_lapse_changed", "chat", t.chat, "user", user, "lapsed", lapsed)
	return nil
}

// SetNotificationsMuted toggles the member's mute flag.
func (t *Table) SetNotificationsMuted(user types.UserID, muted bool) error {
	_, err := t.update(user, func(m *models.Member) error {
		if m.NotificationsMuted == muted {
			return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
		}
		m.NotificationsMuted = muted
		return nil
	})
	return err
}

// AcceptRules records that user accepted the chat rules at version.
func (t *Table) AcceptRules(user types.UserID, version uint32) error {
	_, err := t.update(user, func(m *models.Member) error {
		if m.RulesAccepted >= version {
			return fmt.Errorf("user %s: %w", user, models.ErrUnchanged)
		}
		m.RulesAccepted = version
		return nil
	})
	return err
}
