package shard

import (
	"context"
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat"
	"github.com/open-chat-labs/open-chat-sub005/pkg/ledger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// tradeTerms is what the prepare turn hands across the external await:
// plain values only, never pointers into shard state.
type tradeTerms struct {
	offer        types.OfferID
	creator      types.UserID
	tokenOffered string
	amountOffered uint64
	tokenWanted  string
	amountWanted uint64
}

// SettleTrade drives a taker accepting a p2p offer end to end:
//
//	turn:     reserve the offer for the taker
//	external: move the taker's leg on the ledger
//	turn:     mark accepted
//	external: move the creator's leg to the taker
//	turn:     mark completed
//
// A failure of the first transfer rolls the reservation back, so the
// offer reopens for other takers. A failure of the second leaves the
// offer accepted; ResumeSettlement finishes it later with the same
// idempotency key, so the ledger never pays twice.
func (rt *Runtime) SettleTrade(ctx context.Context, chatID types.ChatID, msgID types.MessageID, taker types.UserID) error {
	if rt.Ledger == nil {
		return fmt.Errorf("no ledger configured: %w", models.ErrInvalid)
	}

	_, err := Run(rt.runner, TwoPhase[tradeTerms, *ledger.Receipt]{
		Prepare: func() (tradeTerms, error) {
			c, err := rt.OpenChat(chatID)
			if err != nil {
				return tradeTerms{}, err
			}
			// terms are snapshotted before the reservation write: a
			// failed lookup must leave the offer open
			t, err := rt.termsOf(c, taker, msgID)
			if err != nil {
				return tradeTerms{}, err
			}
			if err := c.ReserveTrade(taker, msgID, rt.Clock.Now()); err != nil {
				return tradeTerms{}, err
			}
			return t, nil
		},
		External: func(t tradeTerms) (*ledger.Receipt, error) {
			return rt.Ledger.Transfer(ctx, ledger.TransferArgs{
				From:           taker,
				To:             t.creator,
				Token:          t.tokenWanted,
				Amount:         t.amountWanted,
				IdempotencyKey: settlementKey(t.offer, taker, "taker-leg"),
			})
		},
		Commit: func(t tradeTerms, _ *ledger.Receipt) error {
			c, err := rt.OpenChat(chatID)
			if err != nil {
				return err
			}
			return c.AcceptTrade(taker, msgID, rt.Clock.Now())
		},
		Rollback: func(t tradeTerms, xerr error) error {
			logger.Warn("trade_taker_leg_failed", "chat", chatID, "message", msgID, "error", xerr)
			c, err := rt.OpenChat(chatID)
			if err != nil {
				return err
			}
			return c.UnreserveTrade(taker, msgID, rt.Clock.Now())
		},
	})
	if err != nil {
		return err
	}
	return rt.finishSettlement(ctx, chatID, msgID, taker)
}

// ResumeSettlement completes an accepted trade whose closing leg never
// landed (crash or transient ledger failure between accept and
// complete). Safe to call repeatedly.
func (rt *Runtime) ResumeSettlement(ctx context.Context, chatID types.ChatID, msgID types.MessageID, taker types.UserID) error {
	return rt.finishSettlement(ctx, chatID, msgID, taker)
}

// finishSettlement drives the creator's leg and the completed marker.
func (rt *Runtime) finishSettlement(ctx context.Context, chatID types.ChatID, msgID types.MessageID, taker types.UserID) error {
	_, err := Run(rt.runner, TwoPhase[tradeTerms, *ledger.Receipt]{
		Prepare: func() (tradeTerms, error) {
			c, err := rt.OpenChat(chatID)
			if err != nil {
				return tradeTerms{}, err
			}
			t, err := rt.termsOf(c, taker, msgID)
			if err != nil {
				return tradeTerms{}, err
			}
			w, err := c.GetMessage(taker, msgID)
			if err != nil {
				return tradeTerms{}, err
			}
			tr := w.Event.Message.Content.Trade
			if tr.Status != models.TradeAccepted {
				return tradeTerms{}, fmt.Errorf("offer %s not accepted: %w", t.offer, models.ErrInvalid)
			}
			if tr.AcceptedBy == nil || *tr.AcceptedBy != taker {
				return tradeTerms{}, fmt.Errorf("accepted by another user: %w", models.ErrNotAuthorized)
			}
			return t, nil
		},
		External: func(t tradeTerms) (*ledger.Receipt, error) {
			return rt.Ledger.Transfer(ctx, ledger.TransferArgs{
				From:           t.creator,
				To:             taker,
				Token:          t.tokenOffered,
				Amount:         t.amountOffered,
				IdempotencyKey: settlementKey(t.offer, taker, "creator-leg"),
			})
		},
		Commit: func(t tradeTerms, _ *ledger.Receipt) error {
			c, err := rt.OpenChat(chatID)
			if err != nil {
				return err
			}
			return c.CompleteTrade(taker, msgID, rt.Clock.Now())
		},
		// no rollback: the accepted state is the recovery point
	})
	if err != nil {
		return fmt.Errorf("closing leg pending, retry settlement: %w", err)
	}
	telemetry.TradesSettled.Inc()
	return nil
}

// termsOf snapshots the offer terms inside a turn.
func (rt *Runtime) termsOf(c *chat.Chat, viewer types.UserID, msgID types.MessageID) (tradeTerms, error) {
	w, err := c.GetMessage(viewer, msgID)
	if err != nil {
		return tradeTerms{}, err
	}
	tr := w.Event.Message.Content.Trade
	if tr == nil {
		return tradeTerms{}, fmt.Errorf("message %s carries no trade offer: %w", msgID, models.ErrInvalid)
	}
	return tradeTerms{
		offer:         tr.OfferID,
		creator:       tr.CreatedBy,
		tokenOffered:  tr.TokenOffered,
		amountOffered: tr.AmountOffered,
		tokenWanted:   tr.TokenWanted,
		amountWanted:  tr.AmountWanted,
	}, nil
}

// settlementKey derives the stable idempotency key for one transfer leg
// of one settlement attempt chain.
func settlementKey(offer types.OfferID, taker types.UserID, leg string) string {
	return fmt.Sprintf("trade:%s:%s:%s", offer, taker, leg)
}
