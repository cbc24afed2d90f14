package token

import (
	"errors"
	"testing"
	"time"

	"matricare/pkg/domain"
)

func testUser() domain.User {
	return domain.User{ID: "user-1", Email: "mother@example.com", Role: domain.RoleMother}
}

func TestIssueAndVerifyCarriesIdentity(t *testing.T) {
	issuer, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	signed, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("user_id = %q, want user-1", claims.UserID)
	}
	if claims.Email != "mother@example.com" {
		t.Fatalf("email = %q, want mother@example.com", claims.Email)
	}
	if claims.Role != domain.RoleMother {
		t.Fatalf("role = %q, want mother", claims.Role)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	issuer, err := NewIssuer("test-secret", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	signed, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = issued.Add(23*time.Hour + 59*time.Minute)
	if _, err := issuer.Verify(signed); err != nil {
		t.Fatalf("token at t+23h59m should verify, got %v", err)
	}

	now = issued.Add(24*time.Hour + 1*time.Minute)
	_, err = issuer.Verify(signed)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("token at t+24h01m should be expired, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	other, err := NewIssuer("other-secret")
	if err != nil {
		t.Fatalf("new other issuer: %v", err)
	}
	signed, err := other.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("cross-secret token should be malformed, got %v", err)
	}
	if _, err := issuer.Verify("not-a-token"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("garbage token should be malformed, got %v", err)
	}
}
