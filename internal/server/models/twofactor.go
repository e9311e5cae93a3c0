package models

import "time"

// TwoFactor is a user's TOTP enrolment. The secret is stored encrypted and
// only becomes active once confirmed.
type TwoFactor struct {
	UserID          string
	SecretEncrypted string
	Enabled         bool
	// LastUsedStep is the 30s TOTP time step of the last accepted code.
	LastUsedStep int64
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
}

// RecoveryCode is a single-use fallback for the TOTP code, stored hashed.
type RecoveryCode struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}
