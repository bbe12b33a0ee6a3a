package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected opaque hash, got %q", hash)
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cret", "") {
		t.Fatalf("expected empty hash to fail")
	}
}

func TestHashPasswordSalts(t *testing.T) {
	a, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := HashPassword("same")
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("x"); err != nil {
		t.Fatalf("expected single char password to pass, got: %v", err)
	}
	if err := ValidatePassword(""); !errors.Is(err, ErrPasswordEmpty) {
		t.Fatalf("expected empty password to fail, got: %v", err)
	}
	if err := ValidatePassword("   "); err != nil {
		t.Fatalf("expected whitespace password to pass, got: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected long password to fail, got: %v", err)
	}
	if _, err := HashPassword(""); !errors.Is(err, ErrPasswordEmpty) {
		t.Fatalf("expected hash of empty password to fail, got: %v", err)
	}
}
