package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Client is the external token ledger a trade settles against. Calls
// block on network I/O and take a context; the shard runtime invokes
// them outside any state turn.
type Client interface {
	Transfer(ctx context.Context, args TransferArgs) (*Receipt, error)
}

// TransferArgs is one token movement. IdempotencyKey dedupes retries of
// the same logical transfer on the ledger side.
type TransferArgs struct {
	From           types.UserID
	To             types.UserID
	Token          string
	Amount         uint64
	IdempotencyKey string
}

// Receipt is the ledger's proof of a landed transfer.
type Receipt struct {
	BlockIndex uint64
}

// ErrTemporary marks transfer failures worth retrying (timeouts,
// throttling). Anything else is permanent: the caller must roll back.
var ErrTemporary = errors.New("temporary ledger failure")

// IsTemporary reports whether err is worth retrying.
func IsTemporary(err error) bool { return errors.Is(err, ErrTemporary) }

// InsufficientFundsError is a permanent transfer failure.
type InsufficientFundsError struct {
	Balance uint64
	Needed  uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, needed %d", e.Balance, e.Needed)
}

// Memory is an in-process ledger used in tests and single-node runs.
// Balances are per user per token.
type Memory struct {
	mu       sync.Mutex
	balances map[string]uint64
	applied  map[string]Receipt
	nextBlk  uint64
	// FailNext, when set, fails the next transfer with the given error.
	FailNext error
}

// NewMemory returns an empty in-process ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]uint64),
		applied:  make(map[string]Receipt),
	}
}

func balKey(user types.UserID, token string) string {
	return string(user) + "/" + token
}

// Credit funds an account.
func (m *Memory) Credit(user types.UserID, token string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balKey(user, token)] += amount
}

// Balance returns the current balance.
func (m *Memory) Balance(user types.UserID, token string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balKey(user, token)]
}

// Transfer moves tokens, honoring the idempotency key: a replay returns
// the original receipt without moving funds twice.
func (m *Memory) Transfer(ctx context.Context, args TransferArgs) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemporary, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return nil, err
	}
	if args.IdempotencyKey != "" {
		if r, ok := m.applied[args.IdempotencyKey]; ok {
			return &r, nil
		}
	}
	from := balKey(args.From, args.Token)
	if m.balances[from] < args.Amount {
		return nil, &InsufficientFundsError{Balance: m.balances[from], Needed: args.Amount}
	}
	m.balances[from] -= args.Amount
	m.balances[balKey(args.To, args.Token)] += args.Amount
	m.nextBlk++
	r := Receipt{BlockIndex: m.nextBlk}
	if args.IdempotencyKey != "" {
		m.applied[args.IdempotencyKey] = r
	}
	return &r, nil
}
