package models

import "time"

// User is the persisted registry account. PasswordHash never leaves the
// service, so it is excluded from JSON rendering.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
