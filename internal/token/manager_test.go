package token

import (
	"context"
	"errors"
	"testing"
)

type fakeAuth struct {
	token string
	err   error
	calls int
}

func (f *fakeAuth) AcquireVendorToken(ctx context.Context, clientID, secret string) (string, error) {
	f.calls++
	return f.token, f.err
}

func TestAcquire_StoresToken(t *testing.T) {
	auth := &fakeAuth{token: "vendor-jwt"}
	m := NewManager(auth, "cid", "sec")

	if err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tok, ok := m.Get()
	if !ok {
		t.Fatal("expected token to be held")
	}
	if tok != "vendor-jwt" {
		t.Errorf("expected vendor-jwt, got %q", tok)
	}
}

func TestAcquire_Failure(t *testing.T) {
	auth := &fakeAuth{err: errors.New("boom")}
	m := NewManager(auth, "cid", "sec")

	if err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := m.Get(); ok {
		t.Error("expected no token after failed acquisition")
	}
}

func TestAcquire_EmptyTokenIsError(t *testing.T) {
	auth := &fakeAuth{token: ""}
	m := NewManager(auth, "cid", "sec")

	if err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestGet_NotReadyBeforeAcquire(t *testing.T) {
	m := NewManager(&fakeAuth{token: "vendor-jwt"}, "cid", "sec")

	if _, ok := m.Get(); ok {
		t.Error("expected not ready before Acquire")
	}
}

func TestToken_LazyAcquire(t *testing.T) {
	auth := &fakeAuth{token: "vendor-jwt"}
	m := NewManager(auth, "cid", "sec")

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "vendor-jwt" {
		t.Errorf("expected vendor-jwt, got %q", tok)
	}
	if auth.calls != 1 {
		t.Errorf("expected 1 acquisition call, got %d", auth.calls)
	}

	// Second call serves the held token without hitting the vendor.
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.calls != 1 {
		t.Errorf("expected no further acquisition calls, got %d", auth.calls)
	}
}

func TestToken_NotReadyWhenVendorDown(t *testing.T) {
	auth := &fakeAuth{err: errors.New("unreachable")}
	m := NewManager(auth, "cid", "sec")

	_, err := m.Token(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got: %v", err)
	}
}

func TestInvalidate_DropsTokenAndReacquires(t *testing.T) {
	auth := &fakeAuth{token: "vendor-jwt-1"}
	m := NewManager(auth, "cid", "sec")

	if err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Invalidate()
	if _, ok := m.Get(); ok {
		t.Fatal("expected no token after Invalidate")
	}

	auth.token = "vendor-jwt-2"
	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "vendor-jwt-2" {
		t.Errorf("expected re-acquired token, got %q", tok)
	}
	if auth.calls != 2 {
		t.Errorf("expected 2 acquisition calls, got %d", auth.calls)
	}
}
