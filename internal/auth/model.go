package auth

import "time"

// User represents an application user.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
