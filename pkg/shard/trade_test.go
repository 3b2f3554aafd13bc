package shard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat"
	"github.com/open-chat-labs/open-chat-sub005/pkg/ledger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func newTradeFixture(t *testing.T) (*Runtime, *ledger.Memory) {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	led := ledger.NewMemory()
	rt := NewRuntime(Config{
		Store:  s,
		Clock:  NewManualClock(1000),
		Ledger: led,
	})
	t.Cleanup(rt.Close)

	_, err = rt.CreateChat(chat.CreateArgs{
		ID: "market", Public: true, HistoryVisibleToNewJoiners: true,
		Creator: "maker", Now: 1000,
	})
	require.NoError(t, err)
	require.NoError(t, rt.WithChat("market", func(c *chat.Chat) error {
		_, err := c.Join("taker", 1001)
		return err
	}))

	require.NoError(t, rt.WithChat("market", func(c *chat.Chat) error {
		_, err := c.SendMessage(chat.SendArgs{
			ID: "offer1", Sender: "maker",
			Content: models.Content{Trade: &models.P2PTradeContent{
				OfferID:       "off1",
				CreatedBy:     "maker",
				TokenOffered:  "CHAT",
				AmountOffered: 100,
				TokenWanted:   "ICP",
				AmountWanted:  5,
				Status:        models.TradeOpen,
			}},
			Now: 1002,
		})
		return err
	}))
	return rt, led
}

func tradeStatus(t *testing.T, rt *Runtime, msg types.MessageID) models.TradeStatus {
	t.Helper()
	var status models.TradeStatus
	require.NoError(t, rt.WithChat("market", func(c *chat.Chat) error {
		w, err := c.GetMessage("maker", msg)
		if err != nil {
			return err
		}
		status = w.Event.Message.Content.Trade.Status
		return nil
	}))
	return status
}

func TestSettleTradeHappyPath(t *testing.T) {
	rt, led := newTradeFixture(t)
	led.Credit("taker", "ICP", 10)
	led.Credit("maker", "CHAT", 100)

	require.NoError(t, rt.SettleTrade(context.Background(), "market", "offer1", "taker"))

	require.Equal(t, models.TradeCompleted, tradeStatus(t, rt, "offer1"))
	require.EqualValues(t, 5, led.Balance("maker", "ICP"))
	require.EqualValues(t, 5, led.Balance("taker", "ICP"))
	require.EqualValues(t, 100, led.Balance("taker", "CHAT"))
	require.EqualValues(t, 0, led.Balance("maker", "CHAT"))
}

func TestSettleTradeRollsBackOnFirstLegFailure(t *testing.T) {
	rt, led := newTradeFixture(t)
	// taker has no ICP: the first transfer fails permanently

	err := rt.SettleTrade(context.Background(), "market", "offer1", "taker")
	var insufficient *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)

	// reservation rolled back, offer reopened
	require.Equal(t, models.TradeOpen, tradeStatus(t, rt, "offer1"))

	// a funded taker can now settle
	led.Credit("taker", "ICP", 10)
	led.Credit("maker", "CHAT", 100)
	require.NoError(t, rt.SettleTrade(context.Background(), "market", "offer1", "taker"))
	require.Equal(t, models.TradeCompleted, tradeStatus(t, rt, "offer1"))
}

func TestSettleTradeResumesAfterSecondLegFailure(t *testing.T) {
	rt, led := newTradeFixture(t)
	led.Credit("taker", "ICP", 10)
	// maker's CHAT is unfunded: first leg lands, second fails

	err := rt.SettleTrade(context.Background(), "market", "offer1", "taker")
	require.Error(t, err)

	// accepted is the recovery point; the taker's payment stands
	require.Equal(t, models.TradeAccepted, tradeStatus(t, rt, "offer1"))
	require.EqualValues(t, 5, led.Balance("maker", "ICP"))

	led.Credit("maker", "CHAT", 100)
	require.NoError(t, rt.ResumeSettlement(context.Background(), "market", "offer1", "taker"))
	require.Equal(t, models.TradeCompleted, tradeStatus(t, rt, "offer1"))
	require.EqualValues(t, 100, led.Balance("taker", "CHAT"))

	// resume is idempotent on the ledger: completed state rejects, no
	// double pay is possible anyway thanks to the idempotency key
	err = rt.ResumeSettlement(context.Background(), "market", "offer1", "taker")
	require.Error(t, err)
	require.EqualValues(t, 100, led.Balance("taker", "CHAT"))
}

func TestSettleTradeFailedPrepareLeavesOfferOpen(t *testing.T) {
	rt, led := newTradeFixture(t)

	// history hidden: a joiner after the offer cannot see the message,
	// so settlement must fail before any reservation lands
	_, err := rt.CreateChat(chat.CreateArgs{
		ID: "bazaar", Public: true, HistoryVisibleToNewJoiners: false,
		Creator: "maker", Now: 2000,
	})
	require.NoError(t, err)
	require.NoError(t, rt.WithChat("bazaar", func(c *chat.Chat) error {
		_, err := c.SendMessage(chat.SendArgs{
			ID: "offer2", Sender: "maker",
			Content: models.Content{Trade: &models.P2PTradeContent{
				OfferID:       "off2",
				CreatedBy:     "maker",
				TokenOffered:  "CHAT",
				AmountOffered: 100,
				TokenWanted:   "ICP",
				AmountWanted:  5,
				Status:        models.TradeOpen,
			}},
			Now: 2001,
		})
		return err
	}))
	require.NoError(t, rt.WithChat("bazaar", func(c *chat.Chat) error {
		_, err := c.Join("late", 2002)
		return err
	}))
	led.Credit("late", "ICP", 10)

	err = rt.SettleTrade(context.Background(), "bazaar", "offer2", "late")
	require.ErrorIs(t, err, models.ErrNotFound)

	// no funds moved and the offer stayed open for visible takers
	require.EqualValues(t, 10, led.Balance("late", "ICP"))
	require.EqualValues(t, 0, led.Balance("maker", "ICP"))
	var status models.TradeStatus
	require.NoError(t, rt.WithChat("bazaar", func(c *chat.Chat) error {
		w, err := c.GetMessage("maker", "offer2")
		if err != nil {
			return err
		}
		status = w.Event.Message.Content.Trade.Status
		return nil
	}))
	require.Equal(t, models.TradeOpen, status)
}

func TestSettleTradeSecondTakerConflicts(t *testing.T) {
	rt, led := newTradeFixture(t)
	require.NoError(t, rt.WithChat("market", func(c *chat.Chat) error {
		_, err := c.Join("taker2", 1003)
		return err
	}))
	led.Credit("taker", "ICP", 10)
	led.Credit("taker2", "ICP", 10)
	led.Credit("maker", "CHAT", 100)

	require.NoError(t, rt.SettleTrade(context.Background(), "market", "offer1", "taker"))
	err := rt.SettleTrade(context.Background(), "market", "offer1", "taker2")
	require.ErrorIs(t, err, models.ErrAlreadyCompleted)
	// taker2 paid nothing
	require.EqualValues(t, 10, led.Balance("taker2", "ICP"))
}
