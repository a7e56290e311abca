package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestDevTokens(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("ops:ADMIN")
	if err != nil || p.Role != RoleAdmin || p.Subject != "ops" {
		t.Fatalf("got %+v %v", p, err)
	}
	if _, err := v.Verify("no-role"); err == nil {
		t.Fatal("expected error for malformed dev token")
	}
}

func TestHMACRoundTrip(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	tok, err := v.Sign("ops", RoleAdmin, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.Verify(tok)
	if err != nil || p.Role != RoleAdmin || p.Subject != "ops" {
		t.Fatalf("got %+v %v", p, err)
	}
}

func TestHMACRejects(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	other := NewVerifier("hmac", "different")
	tok, _ := other.Sign("ops", RoleAdmin, jwt.RegisteredClaims{})
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("expected bad signature")
	}
	expired, _ := v.Sign("ops", RoleAdmin, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	if _, err := v.Verify(expired); err == nil {
		t.Fatal("expected expiry error")
	}
	if _, err := v.Verify("a.b.c"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewVerifier("jwks", "").Verify("x"); err == nil {
		t.Fatal("expected unsupported mode")
	}
}
