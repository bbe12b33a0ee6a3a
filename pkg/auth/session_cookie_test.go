package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCookieSignerRoundTrip(t *testing.T) {
	s, err := NewCookieSigner("secret-key", time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	value, err := s.Sign("token-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if strings.Contains(value, "token-1") {
		t.Fatalf("expected token to be encoded, got %q", value)
	}
	got, err := s.Verify(value)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != "token-1" {
		t.Fatalf("expected token-1, got %q", got)
	}
}

func TestCookieSignerRejectsOtherSecret(t *testing.T) {
	a, _ := NewCookieSigner("secret-a", time.Hour)
	b, _ := NewCookieSigner("secret-b", time.Hour)
	value, err := a.Sign("token-2")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := b.Verify(value); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expected invalid cookie, got %v", err)
	}
}

func TestCookieSignerRejectsTamperedAndExpired(t *testing.T) {
	s, _ := NewCookieSigner("secret-key", time.Minute)
	value, err := s.Sign("token-3")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(value + "x"); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expected tampered cookie to fail, got %v", err)
	}
	if _, err := s.Verify(""); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expected empty cookie to fail, got %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	if _, err := s.Verify(value); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expected expired cookie to fail, got %v", err)
	}
}

func TestNewCookieSignerRequiresSecret(t *testing.T) {
	if _, err := NewCookieSigner(" ", time.Hour); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}
