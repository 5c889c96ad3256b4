package models

import (
	"time"

	"github.com/google/uuid"
)

// Harm describes a negative consequence derived from one or more
// observations. The observation link is many-to-many in the data model,
// though the workflow currently always creates a harm from exactly one
// observation.
//
// SourceSuggestionID is set when the harm was created by accepting an AI
// suggestion. It is the provenance link used to compute suggestion selection
// state; it survives later content edits.
type Harm struct {
	ID                 uuid.UUID   `json:"id"`
	ProjectID          uuid.UUID   `json:"project_id"`
	Content            string      `json:"content"`
	ObservationIDs     []uuid.UUID `json:"observation_ids"`
	SourceSuggestionID *uuid.UUID  `json:"source_suggestion_id,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// DerivedFrom reports whether the harm references the given observation.
func (h *Harm) DerivedFrom(observationID uuid.UUID) bool {
	for _, id := range h.ObservationIDs {
		if id == observationID {
			return true
		}
	}
	return false
}
