package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKindOnly(t *testing.T) {
	err := E(KindNotAuthorized, "rating.update", "r1", nil)
	wrapped := fmt.Errorf("handler: %w", err)

	if !errors.Is(wrapped, ErrNotAuthorized) {
		t.Fatalf("expected wrapped error to match ErrNotAuthorized")
	}
	if errors.Is(wrapped, ErrResourceNotFound) {
		t.Fatalf("kinds must not cross-match")
	}
	if got := KindOf(wrapped); got != KindNotAuthorized {
		t.Fatalf("KindOf = %v, want %v", got, KindNotAuthorized)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %v, want unknown", got)
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("duplicate key")
	err := E(KindAlreadyExists, "rating.create", "603", cause)
	want := "rating.create: already exists (603): duplicate key"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable through Unwrap")
	}
}

func TestCallerRequire(t *testing.T) {
	if _, err := (Caller{}).Require("op"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous caller: got %v", err)
	}
	if _, err := (Caller{UserID: "u1"}).Require("op"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("unverified caller must be rejected: got %v", err)
	}
	id, err := AuthenticatedCaller("u1").Require("op")
	if err != nil || id != "u1" {
		t.Fatalf("Require = %q, %v", id, err)
	}
}
