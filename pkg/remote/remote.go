package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// PeerClient ships key ranges to another shard during chat migration.
// Every call carries an idempotency key so a retried batch is applied
// at most once on the receiving side.
type PeerClient interface {
	// PutBatch applies entries on the peer. Entries arrive in key order
	// and the peer must apply a batch atomically.
	PutBatch(ctx context.Context, idempotencyKey string, chat types.ChatID, entries []store.Entry) error
}

// NewIdempotencyKey returns a fresh unique key for one logical call.
func NewIdempotencyKey() string { return uuid.NewString() }

// ErrPeerUnavailable marks transient peer failures; the migration
// driver retries the same batch with the same key.
var ErrPeerUnavailable = errors.New("peer shard unavailable")

// Loopback is a PeerClient applying batches to a local store; used in
// tests and single-process topologies.
type Loopback struct {
	Target *store.Store

	mu      sync.Mutex
	applied map[string]struct{}
	// FailNext, when set, fails the next call with ErrPeerUnavailable.
	FailNext bool
}

// NewLoopback returns a PeerClient writing into target.
func NewLoopback(target *store.Store) *Loopback {
	return &Loopback{Target: target, applied: make(map[string]struct{})}
}

// PutBatch applies entries to the local target store, deduping by
// idempotency key.
func (l *Loopback) PutBatch(ctx context.Context, idempotencyKey string, chat types.ChatID, entries []store.Entry) error {
	if err := ctx.Err(); err != nil {
		return ErrPeerUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailNext {
		l.FailNext = false
		return ErrPeerUnavailable
	}
	if _, ok := l.applied[idempotencyKey]; ok {
		return nil
	}
	batch := l.Target.NewBatch()
	for _, e := range entries {
		if err := batch.Set([]byte(e.Key), e.Value, nil); err != nil {
			return err
		}
	}
	if err := l.Target.Apply(batch, true); err != nil {
		return err
	}
	l.applied[idempotencyKey] = struct{}{}
	return nil
}
