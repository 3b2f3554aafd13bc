package shard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/remote"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store/keys"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// migration pacing
const (
	migrateBatchBytes  = store.DefaultScanBudget
	migrateMaxAttempts = 5
	migrateRetryDelay  = 200 * time.Millisecond
)

// MigrateChat moves one chat's entire key range to the peer shard. Each
// batch is read inside a turn, shipped outside any turn, and retried
// with the same idempotency key on transient peer failures so the peer
// applies it at most once. After the copy completes the local range is
// dropped and a delete marker is left so stragglers are swept.
//
// Writes to the chat during migration are not blocked here; the caller
// freezes the chat first.
func (rt *Runtime) MigrateChat(ctx context.Context, id types.ChatID) (int, error) {
	if rt.Peer == nil {
		return 0, fmt.Errorf("no peer configured: %w", models.ErrInvalid)
	}
	prefix := keys.GenChatPrefix(id)

	var copied int
	cursor := ""
	for {
		var batch []store.Entry
		var done bool
		err := rt.runner.Execute(func() error {
			var err error
			cursor, done, err = rt.Store.CopyPrefix(prefix, cursor, migrateBatchBytes, func(e store.Entry) error {
				batch = append(batch, e)
				return nil
			})
			return err
		})
		if err != nil {
			return copied, err
		}
		if len(batch) > 0 {
			if err := rt.shipBatch(ctx, id, batch); err != nil {
				return copied, err
			}
			copied += len(batch)
		}
		if done {
			break
		}
	}

	err := rt.runner.Execute(func() error {
		if err := rt.Store.Set(keys.GenChatDeleteMarker(id), nil); err != nil {
			return err
		}
		_, err := rt.Store.DeletePrefix(prefix, 0)
		return err
	})
	if err != nil {
		return copied, err
	}
	logger.Info("chat_migrated", "chat", id, "entries", copied)
	return copied, nil
}

// shipBatch sends one batch, retrying transient failures with the same
// idempotency key.
func (rt *Runtime) shipBatch(ctx context.Context, id types.ChatID, batch []store.Entry) error {
	key := remote.NewIdempotencyKey()
	var lastErr error
	for attempt := 1; attempt <= migrateMaxAttempts; attempt++ {
		lastErr = rt.Peer.PutBatch(ctx, key, id, batch)
		if lastErr == nil {
			telemetry.MigrationBatches.Inc()
			return nil
		}
		if !errors.Is(lastErr, remote.ErrPeerUnavailable) {
			return lastErr
		}
		logger.Warn("migrate_batch_retry", "chat", id, "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(migrateRetryDelay):
		}
	}
	return fmt.Errorf("peer rejected batch after %d attempts: %w", migrateMaxAttempts, lastErr)
}
