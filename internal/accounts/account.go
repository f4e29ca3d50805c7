package accounts

import (
	"errors"
	"time"
)

var (
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidAccount     = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account is a stored user. Only the bcrypt hash of the password is kept.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}
