package auth

import (
	"testing"
	"time"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
)

func testUser() *model.User {
	return &model.User{ID: 42, Email: "alice@example.com", Name: "Alice"}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("expected email alice@example.com, got %q", claims.Email)
	}
	if claims.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", claims.Name)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.IssueWithTTL(testUser(), -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL failed: %v", err)
	}

	_, err = issuer.Verify(token)
	if err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
	if apperr.CodeOf(err) != apperr.CodeTokenExpired {
		t.Errorf("expected code %s, got %s", apperr.CodeTokenExpired, apperr.CodeOf(err))
	}
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	other := NewTokenIssuer("other-secret", time.Hour)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = other.Verify(token)
	if err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
	if apperr.CodeOf(err) != apperr.CodeInvalidToken {
		t.Errorf("expected code %s, got %s", apperr.CodeInvalidToken, apperr.CodeOf(err))
	}
}

func TestTokenIssuer_Garbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	_, err := issuer.Verify("not-a-token")
	if err == nil {
		t.Fatal("expected error for garbage token, got nil")
	}
	if apperr.CodeOf(err) != apperr.CodeInvalidToken {
		t.Errorf("expected code %s, got %s", apperr.CodeInvalidToken, apperr.CodeOf(err))
	}
}

func TestTokenIssuer_DefaultTTL(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 0)

	token, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 23*time.Hour || ttl > 24*time.Hour {
		t.Errorf("expected ~24h default ttl, got %s", ttl)
	}
}
