// Package models contains domain types for the synthesis worksheet engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the root of a synthesis worksheet. All other entities are
// scoped to exactly one project, and a project belongs to exactly one user.
type Project struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
