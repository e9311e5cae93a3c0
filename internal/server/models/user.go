// Package models defines server-side records persisted in the database.
package models

import "time"

// User is an account that signs in with email and password.
type User struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	TwoFactorEnabled bool      `db:"two_factor_enabled"`
	CreatedAt        time.Time `db:"created_at"`
}
