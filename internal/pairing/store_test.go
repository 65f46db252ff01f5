package pairing

import (
	"testing"
	"time"
)

func TestRequestCodeReusesPending(t *testing.T) {
	store := NewStore(t.TempDir())

	code1, err := store.RequestCode("matrix", "@alice:example.org")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	code2, err := store.RequestCode("matrix", "@alice:example.org")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	if code1 != code2 {
		t.Fatalf("expected re-request to reuse code, got %q and %q", code1, code2)
	}
}

func TestRedeemAddsToAuthorizedAndConsumesCode(t *testing.T) {
	store := NewStore(t.TempDir())

	code, err := store.RequestCode("discord", "12345")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	id, err := store.Redeem(code)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if id.Platform != "discord" || id.UserID != "12345" {
		t.Fatalf("Redeem() = %+v, want discord/12345", id)
	}

	ok, err := store.IsAuthorized("discord", "12345")
	if err != nil {
		t.Fatalf("IsAuthorized() error = %v", err)
	}
	if !ok {
		t.Fatal("expected identity to be authorized after redemption")
	}

	if _, err := store.Redeem(code); err != ErrCodeNotFound {
		t.Fatalf("expected second redemption to fail with ErrCodeNotFound, got %v", err)
	}
}

func TestRedeemUnknownCodeFails(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.Redeem("NOTREAL1"); err != ErrCodeNotFound {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestRedeemExpiredCodeFails(t *testing.T) {
	store := NewStore(t.TempDir())
	store.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	code, err := store.RequestCode("matrix", "@bob:example.org")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	store.now = func() time.Time { return time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC) }
	if _, err := store.Redeem(code); err != ErrCodeNotFound {
		t.Fatalf("expected expired code to fail with ErrCodeNotFound, got %v", err)
	}
}

func TestIsAuthorizedFalseForUnknownIdentity(t *testing.T) {
	store := NewStore(t.TempDir())
	ok, err := store.IsAuthorized("matrix", "@nobody:example.org")
	if err != nil {
		t.Fatalf("IsAuthorized() error = %v", err)
	}
	if ok {
		t.Fatal("expected unknown identity to be unauthorized")
	}
}
