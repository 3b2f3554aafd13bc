package timeutil

import (
	"time"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Now returns the current wall-clock time in UTC.
func Now() time.Time { return time.Now().UTC() }

// NowMillis returns the current wall-clock time in epoch milliseconds.
func NowMillis() types.TimestampMillis {
	return types.TimestampMillis(Now().UnixMilli())
}

// ToMillis converts a time.Time to epoch milliseconds.
func ToMillis(t time.Time) types.TimestampMillis {
	return types.TimestampMillis(t.UnixMilli())
}

// FromMillis converts epoch milliseconds to a UTC time.Time.
func FromMillis(ts types.TimestampMillis) time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}
