package models

import (
	"time"

	"github.com/google/uuid"
)

// Criterion is a "the solution should..." statement derived from exactly
// one harm.
type Criterion struct {
	ID                 uuid.UUID  `json:"id"`
	ProjectID          uuid.UUID  `json:"project_id"`
	HarmID             uuid.UUID  `json:"harm_id"`
	Content            string     `json:"content"`
	SourceSuggestionID *uuid.UUID `json:"source_suggestion_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}
