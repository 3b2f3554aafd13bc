package shard

import (
	"sync/atomic"

	"github.com/open-chat-labs/open-chat-sub005/pkg/timeutil"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Clock supplies the timestamps written into events. Injected so tests
// and replays control time; production uses SystemClock.
type Clock interface {
	Now() types.TimestampMillis
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() types.TimestampMillis {
	return timeutil.NowMillis()
}

// ManualClock is a settable clock for tests.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock starts at now.
func NewManualClock(now types.TimestampMillis) *ManualClock {
	c := &ManualClock{}
	c.now.Store(uint64(now))
	return c
}

func (c *ManualClock) Now() types.TimestampMillis {
	return types.TimestampMillis(c.now.Load())
}

// Set moves the clock to now.
func (c *ManualClock) Set(now types.TimestampMillis) { c.now.Store(uint64(now)) }

// Advance moves the clock forward by d milliseconds.
func (c *ManualClock) Advance(d types.TimestampMillis) { c.now.Add(uint64(d)) }
