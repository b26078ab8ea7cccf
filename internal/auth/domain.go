package auth

import "time"

// User is an authenticated portal account. The national identifier is the
// login name and the identity quotas are counted against.
type User struct {
	ID           int64
	NationalID   string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
