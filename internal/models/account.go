package models

import (
	"time"
)

// Account is a registered bike owner, identified by phone number.
type Account struct {
	ID           string
	PhoneNumber  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeviceListing says which of the account's device lists an origin is on.
// An origin appears on at most one list, enforced by a unique constraint
// on (account_id, ip_address).
type DeviceListing string

const (
	DeviceWhitelisted DeviceListing = "whitelisted"
	DeviceBlacklisted DeviceListing = "blacklisted"
)

// Device is a network origin an account has trusted or been blocked from.
type Device struct {
	ID        string
	AccountID string
	IPAddress string
	Label     string
	Listing   DeviceListing
	CreatedAt time.Time
}
