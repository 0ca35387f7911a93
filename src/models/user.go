package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a dashboard user, provisioned on first sign-in
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
