package jwt

import (
	"strings"
	"testing"
	"time"
)

func TestSignParseRoundtrip(t *testing.T) {
	c := NewCodec("test-secret")

	tokenStr, err := c.Sign("alice", "member", "abc123", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := c.Parse(tokenStr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Username != "alice" || claims.Role != "member" || claims.TokenID != "abc123" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signer := NewCodec("secret-a")
	verifier := NewCodec("secret-b")

	tokenStr, err := signer.Sign("alice", "member", "abc123", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Parse(tokenStr); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	c := NewCodec("test-secret")
	tokenStr, err := c.Sign("alice", "member", "abc123", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tokenStr)
	}
	parts[1] = parts[1][:len(parts[1])-2] + "xx"
	if _, err := c.Parse(strings.Join(parts, ".")); err == nil {
		t.Fatal("expected failure for tampered payload")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	c := NewCodec("test-secret")
	tokenStr, err := c.Sign("alice", "member", "abc123", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Parse(tokenStr); err == nil {
		t.Fatal("expected failure for expired credential")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	c := NewCodec("test-secret")
	for _, input := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := c.Parse(input); err == nil {
			t.Fatalf("expected failure for %q", input)
		}
	}
}

func TestEmptySecretFallsBack(t *testing.T) {
	c := NewCodec("")
	tokenStr, err := c.Sign("alice", "owner", "id", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Parse(tokenStr); err != nil {
		t.Fatalf("parse with fallback secret: %v", err)
	}
}
