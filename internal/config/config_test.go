package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 30 * time.Minute},
		{"RefreshTokenExpiry", cfg.Auth.RefreshTokenExpiry, 7 * 24 * time.Hour},
		{"SessionTTL", cfg.Auth.SessionTTL, 5 * time.Minute},
		{"RegistrationWindow", cfg.Auth.RegistrationWindow, 5 * time.Minute},
		{"SMSCooldown", cfg.Auth.SMSCooldown, 60 * time.Second},
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.SMS.Enabled {
		t.Error("SMS should be disabled by default outside production")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("expected error for missing JWT_SECRET")
	}
}

func TestLoad_WeakJWTSecretInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "short")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("expected error for short JWT_SECRET in production")
	}
}

func TestLoad_CustomDurations(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ACCESS_TOKEN_EXPIRY", "15m")
	os.Setenv("SMS_COOLDOWN", "90s")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("AccessTokenExpiry = %v, want 15m", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Auth.SMSCooldown != 90*time.Second {
		t.Errorf("SMSCooldown = %v, want 90s", cfg.Auth.SMSCooldown)
	}
}
