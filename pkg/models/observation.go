package models

import (
	"time"

	"github.com/google/uuid"
)

// Observation is a single field note captured by the user. Observations are
// the first stage of the worksheet; harms branch off of them.
//
// SortOrder is a fractional position among siblings. Listing orders by
// ascending SortOrder when present, ties (and missing orders) broken by
// CreatedAt ascending. Inserting between two siblings takes the midpoint of
// their orders, so re-insertion never renumbers the rest of the sequence.
type Observation struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Content   string    `json:"content"`
	Title     string    `json:"title,omitempty"`
	SortOrder *float64  `json:"sort_order,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EffectiveOrder returns the sort position used for sibling ordering.
// Observations without an explicit order sort after ordered ones.
func (o *Observation) EffectiveOrder() (float64, bool) {
	if o.SortOrder == nil {
		return 0, false
	}
	return *o.SortOrder, true
}

// MidpointOrder computes the fractional order for a node inserted between
// two neighbors. Either bound may be absent (nil): a missing left bound
// means "insert first", a missing right bound means "insert last".
func MidpointOrder(left, right *float64) float64 {
	switch {
	case left == nil && right == nil:
		return 1
	case left == nil:
		return *right - 1
	case right == nil:
		return *left + 1
	default:
		return (*left + *right) / 2
	}
}
