package events

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Trade transitions are split so a caller can bracket the external
// ledger transfer: Reserve is the prepare step written before the
// transfer starts, Accept/Complete commit after it succeeds, and
// Unreserve rolls back after it fails. Each transition is a single
// atomic batch, so a crash between steps leaves the offer either
// reserved (recoverable by unreserve) or in its prior state.

// mutateTrade applies fn to the trade offer carried by message id and
// appends a p2p_trade_status audit event when the status changed.
func (l *Log) mutateTrade(id types.MessageID, user types.UserID, now types.TimestampMillis, fn func(*models.P2PTradeContent) error) error {
	_, _, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted != nil {
			return mutation{}, fmt.Errorf("message %s deleted: %w", id, models.ErrNotFound)
		}
		tr := msg.Content.Trade
		if tr == nil {
			return mutation{}, fmt.Errorf("%w: message %s carries no trade offer", models.ErrInvalid, id)
		}
		before := tr.Status
		if err := fn(tr); err != nil {
			return mutation{}, err
		}
		if tr.Status == before {
			return mutation{}, nil
		}
		return mutation{audit: &models.EventPayload{
			TradeStatusChange: &models.TradeStatusEvent{
				User: user, Message: id, Offer: tr.OfferID, Status: tr.Status,
			},
		}}, nil
	})
	return err
}

// checkOpen classifies why an offer is not open, mapping each terminal
// or transient state to its conflict error.
func checkOpen(tr *models.P2PTradeContent, now types.TimestampMillis) error {
	switch tr.Status {
	case models.TradeOpen:
		if tr.ExpiresAt != 0 && now >= tr.ExpiresAt {
			return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrExpired)
		}
		return nil
	case models.TradeReserved, models.TradeAccepted:
		return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrAlreadyReserved)
	case models.TradeCompleted:
		return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrAlreadyCompleted)
	case models.TradeCancelled:
		return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrCancelled)
	case models.TradeExpired:
		return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrExpired)
	}
	return fmt.Errorf("%w: unknown trade status %q", models.ErrInvalid, tr.Status)
}

// ReserveTrade moves an open offer to reserved for user. At most one
// reservation is ever active; a second taker hits ErrAlreadyReserved.
// The offer's creator cannot reserve their own offer.
func (l *Log) ReserveTrade(id types.MessageID, user types.UserID, now types.TimestampMillis) error {
	err := l.mutateTrade(id, user, now, func(tr *models.P2PTradeContent) error {
		if tr.CreatedBy == user {
			return fmt.Errorf("cannot reserve own offer: %w", models.ErrInvalid)
		}
		if err := checkOpen(tr, now); err != nil {
			return err
		}
		tr.Status = models.TradeReserved
		tr.ReservedBy = &user
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("trade_reserved", "chat", l.chat, "message", id, "user", user)
	return nil
}

// UnreserveTrade releases user's reservation, reopening the offer for
// other takers. Rollback path after a failed external transfer. Only
// the holder of the reservation may release it.
func (l *Log) UnreserveTrade(id types.MessageID, user types.UserID, now types.TimestampMillis) error {
	err := l.mutateTrade(id, user, now, func(tr *models.P2PTradeContent) error {
		if tr.Status != models.TradeReserved {
			return fmt.Errorf("offer %s not reserved: %w", tr.OfferID, models.ErrUnchanged)
		}
		if tr.ReservedBy == nil || *tr.ReservedBy != user {
			return fmt.Errorf("reservation held by another user: %w", models.ErrNotAuthorized)
		}
		tr.Status = models.TradeOpen
		tr.ReservedBy = nil
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("trade_unreserved", "chat", l.chat, "message", id, "user", user)
	return nil
}

// AcceptTrade marks user's reserved offer accepted once their side of
// the transfer has landed on the ledger.
func (l *Log) AcceptTrade(id types.MessageID, user types.UserID, now types.TimestampMillis) error {
	err := l.mutateTrade(id, user, now, func(tr *models.P2PTradeContent) error {
		if tr.Status != models.TradeReserved {
			return fmt.Errorf("offer %s not reserved: %w", tr.OfferID, models.ErrInvalid)
		}
		if tr.ReservedBy == nil || *tr.ReservedBy != user {
			return fmt.Errorf("reservation held by another user: %w", models.ErrNotAuthorized)
		}
		tr.Status = models.TradeAccepted
		tr.AcceptedBy = &user
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("trade_accepted", "chat", l.chat, "message", id, "user", user)
	return nil
}

// CompleteTrade marks an accepted offer completed after the closing
// transfer lands. Terminal state.
func (l *Log) CompleteTrade(id types.MessageID, user types.UserID, now types.TimestampMillis) error {
	err := l.mutateTrade(id, user, now, func(tr *models.P2PTradeContent) error {
		if tr.Status == models.TradeCompleted {
			return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrAlreadyCompleted)
		}
		if tr.Status != models.TradeAccepted {
			return fmt.Errorf("offer %s not accepted: %w", tr.OfferID, models.ErrInvalid)
		}
		tr.Status = models.TradeCompleted
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("trade_completed", "chat", l.chat, "message", id, "user", user)
	return nil
}

// CancelTrade withdraws an open offer. Only the creator may cancel, and
// only while no reservation is in flight.
func (l *Log) CancelTrade(id types.MessageID, user types.UserID, now types.TimestampMillis) error {
	err := l.mutateTrade(id, user, now, func(tr *models.P2PTradeContent) error {
		if tr.CreatedBy != user {
			return fmt.Errorf("only the creator may cancel: %w", models.ErrNotAuthorized)
		}
		if tr.Status == models.TradeCancelled {
			return fmt.Errorf("offer %s: %w", tr.OfferID, models.ErrUnchanged)
		}
		if err := checkOpen(tr, now); err != nil {
			return err
		}
		tr.Status = models.TradeCancelled
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("trade_cancelled", "chat", l.chat, "message", id, "user", user)
	return nil
}

// ExpireTrade flips an open offer past its deadline to expired. Called
// by the GC sweep; reserved offers are left alone until the reservation
// resolves.
func (l *Log) ExpireTrade(id types.MessageID, now types.TimestampMillis) error {
	err := l.mutateTrade(id, "system", now, func(tr *models.P2PTradeContent) error {
		if tr.Status != models.TradeOpen {
			return fmt.Errorf("offer %s not open: %w", tr.OfferID, models.ErrUnchanged)
		}
		if tr.ExpiresAt == 0 || now < tr.ExpiresAt {
			return fmt.Errorf("offer %s not yet expired: %w", tr.OfferID, models.ErrUnchanged)
		}
		tr.Status = models.TradeExpired
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("trade_expired", "chat", l.chat, "message", id)
	return nil
}
