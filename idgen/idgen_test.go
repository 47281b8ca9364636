package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestObjectID_Shape(t *testing.T) {
	gen := ObjectID()
	id := gen()
	if len(id) != 24 {
		t.Fatalf("ObjectID: got length %d (%q)", len(id), id)
	}
	if !IsObjectID(id) {
		t.Fatalf("ObjectID: %q is not recognised by IsObjectID", id)
	}
	if id != strings.ToLower(id) {
		t.Fatalf("ObjectID: expected lowercase hex, got %q", id)
	}
}

func TestObjectID_Uniqueness(t *testing.T) {
	gen := ObjectID()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("ObjectID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestObjectTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := New()
	ts, err := ObjectTime(id)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Before(before.Truncate(time.Second)) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("ObjectTime: %v outside expected window", ts)
	}
	if _, err := ObjectTime("nope"); err == nil {
		t.Fatal("ObjectTime: expected error for malformed id")
	}
}

func TestIsObjectID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"65f1c0ffee0000000000abcd", true},
		{"65f1c0ffee0000000000abc", false},
		{"zzf1c0ffee0000000000abcd", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsObjectID(tt.in); got != tt.want {
			t.Errorf("IsObjectID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	parts := strings.Split(id, "-")
	if len(parts) != 5 || len(id) != 36 {
		t.Fatalf("UUIDv7: unexpected format %q", id)
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("evt_", UUIDv7())()
	if !strings.HasPrefix(id, "evt_") {
		t.Fatalf("Prefixed: expected prefix 'evt_', got %q", id)
	}
}
