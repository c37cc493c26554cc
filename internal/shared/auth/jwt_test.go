package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestSigner(t)
	tok, exp, err := s.IssueSession("user-1", "company-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if exp.IsZero() {
		t.Fatalf("expected expiry")
	}
	claims, err := s.VerifySession(tok)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if claims.UserID != "user-1" || claims.CompanyID != "company-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifySessionRejectsExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	s := newTestSigner(t).WithClock(func() time.Time { return past })
	tok, _, err := s.IssueSession("user-1", "")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := newTestSigner(t).VerifySession(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifySessionRejectsTampered(t *testing.T) {
	s := newTestSigner(t)
	tok, _, err := s.IssueSession("user-1", "")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	parts := strings.Split(tok, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := s.VerifySession(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}

	other, _ := NewSigner("other-secret", time.Hour, false)
	if _, err := other.VerifySession(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}
}

func TestTokenPurposesAreNotInterchangeable(t *testing.T) {
	s := newTestSigner(t)
	fileTok, _, err := s.IssueFileToken("abc/file.pdf", "file.pdf", time.Minute)
	if err != nil {
		t.Fatalf("IssueFileToken: %v", err)
	}
	if _, err := s.VerifySession(fileTok); err == nil {
		t.Fatalf("expected file token to be rejected as a session")
	}
	claims, err := s.VerifyFileToken(fileTok)
	if err != nil {
		t.Fatalf("VerifyFileToken: %v", err)
	}
	if claims.Key != "abc/file.pdf" {
		t.Fatalf("unexpected key %q", claims.Key)
	}

	verifyTok, err := s.IssueVerification("user-9", time.Hour)
	if err != nil {
		t.Fatalf("IssueVerification: %v", err)
	}
	userID, err := s.VerifyVerification(verifyTok)
	if err != nil || userID != "user-9" {
		t.Fatalf("VerifyVerification: %q %v", userID, err)
	}
}

func TestNewSignerRequiresSecretInProduction(t *testing.T) {
	if _, err := NewSigner("", time.Hour, true); err == nil {
		t.Fatalf("expected error without secret in production")
	}
	if _, err := NewSigner("", time.Hour, false); err != nil {
		t.Fatalf("expected dev fallback, got %v", err)
	}
}
