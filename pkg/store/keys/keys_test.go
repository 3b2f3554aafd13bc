package keys

import (
	"sort"
	"testing"

	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

func TestEventKeyRoundTrip(t *testing.T) {
	k := GenEventKey("room1", 42)
	p, err := ParseEventKey(k)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Chat != "room1" || p.Root != MainLogRoot || p.Index != 42 {
		t.Fatalf("bad parts: %+v", p)
	}

	k = GenThreadEventKey("room1", 7, 3)
	p, err = ParseEventKey(k)
	if err != nil {
		t.Fatalf("parse thread: %v", err)
	}
	if p.Chat != "room1" || p.Root != 7 || p.Index != 3 {
		t.Fatalf("bad thread parts: %+v", p)
	}
}

func TestExpiryKeyRoundTripAndOrder(t *testing.T) {
	k := GenExpiryKey(1700000000000, "room1", MainLogRoot, 9)
	p, err := ParseExpiryKey(k)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Due != 1700000000000 || p.Chat != "room1" || p.Root != MainLogRoot || p.Index != 9 {
		t.Fatalf("bad parts: %+v", p)
	}

	// lexicographic key order must equal due-time order
	ks := []string{
		GenExpiryKey(300, "c", 0, 1),
		GenExpiryKey(20, "c", 0, 2),
		GenExpiryKey(1000, "c", 0, 3),
	}
	sort.Strings(ks)
	for i, want := range []types.TimestampMillis{20, 300, 1000} {
		p, err := ParseExpiryKey(ks[i])
		if err != nil {
			t.Fatalf("parse sorted: %v", err)
		}
		if p.Due != want {
			t.Fatalf("sorted[%d].Due = %d, want %d", i, p.Due, want)
		}
	}
}

func TestPurgeKeyRoundTrip(t *testing.T) {
	k := GenPurgeKey(123456, "room1", "msg-9")
	p, err := ParsePurgeKey(k)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Due != 123456 || p.Chat != "room1" || p.Message != "msg-9" {
		t.Fatalf("bad parts: %+v", p)
	}
}

func TestMemberAndBlockedKeys(t *testing.T) {
	chat, user, err := ParseMemberKey(GenMemberKey("room1", "alice"))
	if err != nil {
		t.Fatalf("member parse: %v", err)
	}
	if chat != "room1" || user != "alice" {
		t.Fatalf("member parts: %s %s", chat, user)
	}
	u, err := ParseBlockedKey(GenBlockedKey("room1", "mallory"))
	if err != nil {
		t.Fatalf("blocked parse: %v", err)
	}
	if u != "mallory" {
		t.Fatalf("blocked user: %s", u)
	}
}

func TestChatDeleteMarkerRoundTrip(t *testing.T) {
	id, err := ParseChatDeleteMarker(GenChatDeleteMarker("room1"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "room1" {
		t.Fatalf("chat = %s", id)
	}
	if _, err := ParseChatDeleteMarker("del:c:"); err == nil {
		t.Fatal("empty chat id accepted")
	}
}

func TestChatPrefixCoversAllFamilies(t *testing.T) {
	prefix := GenChatPrefix("room1")
	for _, k := range []string{
		GenChatMetaKey("room1"),
		GenEventKey("room1", 1),
		GenThreadEventKey("room1", 1, 1),
		GenMessageIdxKey("room1", "m1"),
		GenMemberKey("room1", "alice"),
		GenBlockedKey("room1", "mallory"),
	} {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			t.Fatalf("key %s outside chat prefix %s", k, prefix)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseEventKey("x:y"); err == nil {
		t.Fatal("garbage event key accepted")
	}
	if _, err := ParseExpiryKey("exp:abc"); err == nil {
		t.Fatal("garbage expiry key accepted")
	}
	if _, err := ParsePurgeKey("gc:purge:1"); err == nil {
		t.Fatal("garbage purge key accepted")
	}
}
