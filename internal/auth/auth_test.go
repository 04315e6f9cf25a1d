package auth

import (
	"context"
	"testing"
	"time"

	"github.com/panoptikon-net/panoptikon/internal/store"
)

func testSessions(t *testing.T) *SessionStore {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s, err := NewSessionStore(context.Background(), st)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := testSessions(t)
	ctx := context.Background()

	tok, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	if err := s.Create(ctx, tok, time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := s.Valid(ctx, tok)
	if err != nil {
		t.Fatalf("Valid: %v", err)
	}
	if !ok {
		t.Error("fresh session not valid")
	}

	ok, err = s.Valid(ctx, "no-such-token")
	if err != nil {
		t.Fatalf("Valid unknown: %v", err)
	}
	if ok {
		t.Error("unknown token reported valid")
	}

	if err := s.Delete(ctx, tok); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, _ = s.Valid(ctx, tok)
	if ok {
		t.Error("deleted session still valid")
	}
}

func TestSessionExpiry(t *testing.T) {
	s := testSessions(t)
	ctx := context.Background()

	if err := s.Create(ctx, "expired", -time.Minute); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := s.Valid(ctx, "expired")
	if err != nil {
		t.Fatalf("Valid: %v", err)
	}
	if ok {
		t.Error("expired session reported valid")
	}

	n, err := s.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired = %d, want 1", n)
	}
}

func TestWSTokenRoundTrip(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), time.Minute)

	signed, err := svc.IssueWSToken("session-abc")
	if err != nil {
		t.Fatalf("IssueWSToken: %v", err)
	}

	claims, err := svc.ValidateWSToken(signed)
	if err != nil {
		t.Fatalf("ValidateWSToken: %v", err)
	}
	if claims.SessionToken != "session-abc" {
		t.Errorf("SessionToken = %q, want %q", claims.SessionToken, "session-abc")
	}
}

func TestWSTokenExpired(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), -time.Minute)

	signed, err := svc.IssueWSToken("session-abc")
	if err != nil {
		t.Fatalf("IssueWSToken: %v", err)
	}
	if _, err := svc.ValidateWSToken(signed); err == nil {
		t.Error("expected error validating expired token")
	}
}

func TestWSTokenWrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("secret-a"), time.Minute)
	verifier := NewTokenService([]byte("secret-b"), time.Minute)

	signed, err := issuer.IssueWSToken("session-abc")
	if err != nil {
		t.Fatalf("IssueWSToken: %v", err)
	}
	if _, err := verifier.ValidateWSToken(signed); err == nil {
		t.Error("expected error validating token with wrong secret")
	}
}

func TestFailLimiter(t *testing.T) {
	l := NewFailLimiter(10, 3)

	addr := "192.168.1.50"
	if !l.Allow(addr) {
		t.Fatal("fresh address should be allowed")
	}
	for i := 0; i < 3; i++ {
		l.Fail(addr)
	}
	if l.Allow(addr) {
		t.Error("address should be limited after burst of failures")
	}
	if !l.Allow("192.168.1.51") {
		t.Error("unrelated address should not be limited")
	}
}
