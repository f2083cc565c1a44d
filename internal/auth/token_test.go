package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!!", 15*time.Minute, 24*time.Hour)

	accessToken, err := tm.GenerateAccessToken("account-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken() = %v, want nil", err)
	}

	claims, err := tm.ValidateToken(accessToken)
	if err != nil {
		t.Fatalf("ValidateToken() = %v, want nil", err)
	}

	if claims.AccountID != "account-1" {
		t.Errorf("AccountID = %q, want account-1", claims.AccountID)
	}
	if claims.Type != "access" {
		t.Errorf("Type = %q, want access", claims.Type)
	}
	if claims.ID == "" {
		t.Error("expected a JTI")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!!", 15*time.Minute, 24*time.Hour)
	other := NewTokenManager("another-secret-32-characters!!!!", 15*time.Minute, 24*time.Hour)

	token, err := tm.GenerateAccessToken("account-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken() = %v, want nil", err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("expected validation failure for token signed with a different secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!!", -1*time.Minute, 24*time.Hour)

	token, err := tm.GenerateAccessToken("account-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken() = %v, want nil", err)
	}

	if _, err := tm.ValidateToken(token); err == nil {
		t.Error("expected validation failure for expired token")
	}
}

func TestRefreshTokenHasRefreshType(t *testing.T) {
	tm := NewTokenManager("test-secret-32-characters-long!!", 15*time.Minute, 24*time.Hour)

	token, err := tm.GenerateRefreshToken("account-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() = %v, want nil", err)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() = %v, want nil", err)
	}
	if claims.Type != "refresh" {
		t.Errorf("Type = %q, want refresh", claims.Type)
	}
}
