package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"` // Never expose this to the client
	IsActive     bool       `json:"-"`
	IsStaff      bool       `json:"-"`
	IsSuperuser  bool       `json:"-"`
	LastLogin    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"-"`
}

// UserUpdate carries the optional fields of a profile update. Nil fields are
// left unchanged.
type UserUpdate struct {
	Email    *string
	Name     *string
	Password *string
}
