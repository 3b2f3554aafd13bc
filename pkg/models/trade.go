package models

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// TradeStatus is the p2p trade offer state machine:
//
//	Open -> Reserved(by) -> Accepted(by) -> Completed
//	 |          |
//	 |          +-> Open (unreserve after a failed external transfer)
//	 +-> Cancelled | Expired
//
// At most one reservation is active at a time; the reservation bridges
// the gap across the asynchronous ledger call.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "open"
	TradeReserved  TradeStatus = "reserved"
	TradeAccepted  TradeStatus = "accepted"
	TradeCompleted TradeStatus = "completed"
	TradeCancelled TradeStatus = "cancelled"
	TradeExpired   TradeStatus = "expired"
)

// P2PTradeContent is a peer-to-peer token swap offer carried by a
// message. Amounts are in the smallest token denomination.
type P2PTradeContent struct {
	OfferID      types.OfferID         `cbor:"o"`
	CreatedBy    types.UserID          `cbor:"by"`
	TokenOffered string                `cbor:"to"`
	AmountOffered uint64               `cbor:"ao"`
	TokenWanted  string                `cbor:"tw"`
	AmountWanted uint64                `cbor:"aw"`
	ExpiresAt    types.TimestampMillis `cbor:"exp"`
	Status       TradeStatus           `cbor:"s"`
	ReservedBy   *types.UserID         `cbor:"rb,omitempty"`
	AcceptedBy   *types.UserID         `cbor:"ab,omitempty"`
}
