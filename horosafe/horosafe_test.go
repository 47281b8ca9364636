package horosafe

import (
	"errors"
	"strings"
	"testing"
)

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}

	_, err = LimitedReadAll(strings.NewReader(strings.Repeat("x", 11)), 10)
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"", true},
		{"https://api.buildboard.app", true},
		{"http://localhost:8085", true},
		{"ftp://example.com", false},
		{"https://", false},
		{"https://example.com/?x=1", false},
		{"https://example.com/#top", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		err := ValidateBaseURL(tt.url)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateBaseURL(%q) error = %v, want ok=%v", tt.url, err, tt.ok)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
