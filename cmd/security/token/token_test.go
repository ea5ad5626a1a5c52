package token

import (
	"encoding/base64"
	"testing"
)

func TestNewOpaque_URLSafeAndUnique(t *testing.T) {
	a, err := NewOpaque(32)
	if err != nil {
		t.Fatalf("NewOpaque: %v", err)
	}
	b, err := NewOpaque(32)
	if err != nil {
		t.Fatalf("NewOpaque: %v", err)
	}
	if a == b {
		t.Fatalf("two opaque tokens must not collide")
	}
	if _, err := base64.RawURLEncoding.DecodeString(a); err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
}

func TestNewDigits_LengthAndCharset(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewDigits(6)
		if err != nil {
			t.Fatalf("NewDigits: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}

func TestNewDigits_ClampsLength(t *testing.T) {
	code, err := NewDigits(1)
	if err != nil {
		t.Fatalf("NewDigits: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("expected clamp to 4 digits, got %q", code)
	}
}

func TestHashSHA256Hex_StableAndHexEncoded(t *testing.T) {
	d1 := HashSHA256Hex("reset-token")
	d2 := HashSHA256Hex("reset-token")
	if d1 != d2 {
		t.Fatalf("digest must be deterministic")
	}
	if len(d1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(d1))
	}
	if d1 == HashSHA256Hex("other-token") {
		t.Fatalf("different inputs must not share digests")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("abc", "abc") {
		t.Fatalf("expected equal")
	}
	if Equal("abc", "abd") || Equal("abc", "") || Equal("", "") {
		t.Fatalf("expected not equal")
	}
}
