package events

import (
	"errors"
	"testing"

	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func pushOffer(t *testing.T, l *Log, id string, expires types.TimestampMillis) {
	t.Helper()
	mustPush(t, l, MessageArgs{
		ID:     types.MessageID(id),
		Sender: "maker",
		Content: models.Content{Trade: &models.P2PTradeContent{
			OfferID:       "offer-" + types.OfferID(id),
			CreatedBy:     "maker",
			TokenOffered:  "CHAT",
			AmountOffered: 100,
			TokenWanted:   "ICP",
			AmountWanted:  5,
			ExpiresAt:     expires,
			Status:        models.TradeOpen,
		}},
		Now: 1000,
	})
}

func tradeOf(t *testing.T, l *Log, id types.MessageID) *models.P2PTradeContent {
	t.Helper()
	return getMsg(t, l, id).Content.Trade
}

func TestTradeReserveAcceptComplete(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)

	if err := l.ReserveTrade("t1", "taker", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	tr := tradeOf(t, l, "t1")
	if tr.Status != models.TradeReserved || tr.ReservedBy == nil || *tr.ReservedBy != "taker" {
		t.Fatalf("reserve state wrong: %+v", tr)
	}

	if err := l.AcceptTrade("t1", "taker", 3000); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := l.CompleteTrade("t1", "taker", 4000); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := tradeOf(t, l, "t1").Status; got != models.TradeCompleted {
		t.Fatalf("status = %s", got)
	}

	if err := l.CompleteTrade("t1", "taker", 5000); !errors.Is(err, models.ErrAlreadyCompleted) {
		t.Fatalf("double complete: %v", err)
	}
}

func TestTradeSingleReservation(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)

	if err := l.ReserveTrade("t1", "taker1", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := l.ReserveTrade("t1", "taker2", 2001); !errors.Is(err, models.ErrAlreadyReserved) {
		t.Fatalf("second reservation should conflict: %v", err)
	}
	// losing taker must not clobber the reservation
	if got := *tradeOf(t, l, "t1").ReservedBy; got != "taker1" {
		t.Fatalf("reservation stolen by %s", got)
	}
}

func TestTradeUnreserveReopens(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)

	if err := l.ReserveTrade("t1", "taker1", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := l.UnreserveTrade("t1", "other", 2001); !errors.Is(err, models.ErrNotAuthorized) {
		t.Fatalf("foreign unreserve: %v", err)
	}
	if err := l.UnreserveTrade("t1", "taker1", 2002); err != nil {
		t.Fatalf("unreserve: %v", err)
	}
	tr := tradeOf(t, l, "t1")
	if tr.Status != models.TradeOpen || tr.ReservedBy != nil {
		t.Fatalf("unreserve did not reopen: %+v", tr)
	}
	// a different taker can now reserve
	if err := l.ReserveTrade("t1", "taker2", 2003); err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
}

func TestTradeCreatorRules(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)

	if err := l.ReserveTrade("t1", "maker", 2000); !errors.Is(err, models.ErrInvalid) {
		t.Fatalf("creator reserved own offer: %v", err)
	}
	if err := l.CancelTrade("t1", "stranger", 2001); !errors.Is(err, models.ErrNotAuthorized) {
		t.Fatalf("stranger cancelled: %v", err)
	}
	if err := l.CancelTrade("t1", "maker", 2002); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := l.ReserveTrade("t1", "taker", 2003); !errors.Is(err, models.ErrCancelled) {
		t.Fatalf("reserve after cancel: %v", err)
	}
}

func TestTradeCancelBlockedByReservation(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)
	if err := l.ReserveTrade("t1", "taker", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := l.CancelTrade("t1", "maker", 2001); !errors.Is(err, models.ErrAlreadyReserved) {
		t.Fatalf("cancel during reservation: %v", err)
	}
}

func TestTradeExpiry(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 5000)

	if err := l.ExpireTrade("t1", 4999); !errors.Is(err, models.ErrUnchanged) {
		t.Fatalf("early expire: %v", err)
	}
	if err := l.ExpireTrade("t1", 5000); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := l.ReserveTrade("t1", "taker", 5001); !errors.Is(err, models.ErrExpired) {
		t.Fatalf("reserve after expiry: %v", err)
	}

	// reserved offers outlive their deadline until the reservation resolves
	pushOffer(t, l, "t2", 5000)
	if err := l.ReserveTrade("t2", "taker", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := l.ExpireTrade("t2", 6000); !errors.Is(err, models.ErrUnchanged) {
		t.Fatalf("expire clobbered a reservation: %v", err)
	}
}

func TestTradeStatusAuditEvents(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)

	if err := l.ReserveTrade("t1", "taker", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	tail, err := l.GetByIndex(l.LatestEventIndex(), 0)
	if err != nil {
		t.Fatalf("get tail: %v", err)
	}
	ev := tail.Event.TradeStatusChange
	if ev == nil || ev.Status != models.TradeReserved || ev.User != "taker" {
		t.Fatalf("audit event wrong: %+v", tail.Event)
	}
}

func TestReservedTradeMessageCannotBeDeleted(t *testing.T) {
	l := newTestLog(t)
	pushOffer(t, l, "t1", 0)
	if err := l.ReserveTrade("t1", "taker", 2000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := l.DeleteMessage("t1", "maker", false, 2001); !errors.Is(err, models.ErrAlreadyReserved) {
		t.Fatalf("delete during reservation: %v", err)
	}
}
