package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one stored message for a user.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	KindPostCreated = "post_created"
	KindWelcome     = "welcome"
)
