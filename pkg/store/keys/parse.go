package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

type EventKeyParts struct {
	Chat  types.ChatID
	Root  types.EventIndex // MainLogRoot for main-log events
	Index types.EventIndex
}

type ExpiryKeyParts struct {
	Due   types.TimestampMillis
	Chat  types.ChatID
	Root  types.EventIndex
	Index types.EventIndex
}

type PurgeKeyParts struct {
	Due     types.TimestampMillis
	Chat    types.ChatID
	Message types.MessageID
}

func parsePadded(s string, width int) (uint64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ParseEventKey parses a main-log or thread event key.
func ParseEventKey(key string) (*EventKeyParts, error) {
	parts := strings.Split(key, ":")
	switch {
	case len(parts) == 4 && parts[0] == "c" && parts[2] == "e":
		idx, err := parsePadded(parts[3], IndexPadWidth)
		if err != nil {
			return nil, fmt.Errorf("invalid event key %q: %w", key, err)
		}
		return &EventKeyParts{Chat: types.ChatID(parts[1]), Root: MainLogRoot, Index: types.EventIndex(idx)}, nil
	case len(parts) == 6 && parts[0] == "c" && parts[2] == "t" && parts[4] == "e":
		root, err := parsePadded(parts[3], IndexPadWidth)
		if err != nil {
			return nil, fmt.Errorf("invalid thread event key %q: %w", key, err)
		}
		idx, err := parsePadded(parts[5], IndexPadWidth)
		if err != nil {
			return nil, fmt.Errorf("invalid thread event key %q: %w", key, err)
		}
		return &EventKeyParts{Chat: types.ChatID(parts[1]), Root: types.EventIndex(root), Index: types.EventIndex(idx)}, nil
	}
	return nil, fmt.Errorf("invalid event key: %s", key)
}

// ParseMemberKey extracts chat and user ids from a membership key.
func ParseMemberKey(key string) (types.ChatID, types.UserID, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "c" || parts[2] != "u" {
		return "", "", fmt.Errorf("invalid member key: %s", key)
	}
	return types.ChatID(parts[1]), types.UserID(parts[3]), nil
}

// ParseBlockedKey extracts the user id from a blocked-user marker.
func ParseBlockedKey(key string) (types.UserID, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "c" || parts[2] != "b" {
		return "", fmt.Errorf("invalid blocked key: %s", key)
	}
	return types.UserID(parts[3]), nil
}

// ParseExpiryKey parses an expiry index key.
func ParseExpiryKey(key string) (*ExpiryKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "exp" {
		return nil, fmt.Errorf("invalid expiry key: %s", key)
	}
	due, err := parsePadded(parts[1], TSPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry key %q: %w", key, err)
	}
	root, err := parsePadded(parts[3], IndexPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry key %q: %w", key, err)
	}
	idx, err := parsePadded(parts[4], IndexPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry key %q: %w", key, err)
	}
	return &ExpiryKeyParts{
		Due:   types.TimestampMillis(due),
		Chat:  types.ChatID(parts[2]),
		Root:  types.EventIndex(root),
		Index: types.EventIndex(idx),
	}, nil
}

// ParsePurgeKey parses a scheduled hard-delete job key.
func ParsePurgeKey(key string) (*PurgeKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "gc" || parts[1] != "purge" {
		return nil, fmt.Errorf("invalid purge key: %s", key)
	}
	due, err := parsePadded(parts[2], TSPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid purge key %q: %w", key, err)
	}
	return &PurgeKeyParts{
		Due:     types.TimestampMillis(due),
		Chat:    types.ChatID(parts[3]),
		Message: types.MessageID(parts[4]),
	}, nil
}

// ParseChatDeleteMarker extracts the chat id from a soft delete marker.
func ParseChatDeleteMarker(key string) (types.ChatID, error) {
	rest, ok := strings.CutPrefix(key, "del:c:")
	if !ok || rest == "" {
		return "", fmt.Errorf("invalid chat delete marker: %s", key)
	}
	return types.ChatID(rest), nil
}
