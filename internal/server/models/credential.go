package models

import "time"

// Credential is a third-party API key held for a user. Ciphertext is the
// output of cryptox.Encryptor; Hint holds the last characters for display.
type Credential struct {
	ID         string
	UserID     string
	Provider   string
	Label      string
	Ciphertext string
	Hint       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
