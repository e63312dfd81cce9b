package models

import "time"

// Event represents a loggable action in a user's activity feed.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Type      string    `json:"type"` // e.g., "recipe.create", "tag.delete"
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
