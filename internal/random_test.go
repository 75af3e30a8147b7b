package internal

import (
	"testing"
)

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID error: %v", err)
	}

	encoded := sid.String()
	if len(encoded) != 43 {
		t.Fatalf("expected 43-char id, got %d", len(encoded))
	}

	parsed, err := ParseSessionID(encoded)
	if err != nil {
		t.Fatalf("ParseSessionID error: %v", err)
	}
	if parsed != sid {
		t.Fatal("round trip mismatch")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		sid, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID error: %v", err)
		}
		if _, dup := seen[sid.String()]; dup {
			t.Fatal("duplicate session id")
		}
		seen[sid.String()] = struct{}{}
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected deterministic hash")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("expected distinct hashes")
	}
	if len(HashToken("")) != 64 {
		t.Fatal("expected hex sha256")
	}
}

// FuzzParseSessionID checks that arbitrary input never panics and that
// anything accepted re-encodes to itself.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("!!!not-base64!!!")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	if sid, err := NewSessionID(); err == nil {
		f.Add(sid.String())
	}

	f.Fuzz(func(t *testing.T, input string) {
		sid, err := ParseSessionID(input)
		if err != nil {
			return
		}
		if sid.String() != input {
			t.Fatalf("accepted non-canonical id %q", input)
		}
	})
}
