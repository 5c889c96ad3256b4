package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StrategyKind classifies how a strategy addresses its criterion.
type StrategyKind string

const (
	StrategyConfront StrategyKind = "confront"
	StrategyAvoid    StrategyKind = "avoid"
	StrategyMinimize StrategyKind = "minimize"
)

// ValidStrategyKind reports whether k is one of the known kinds.
// The empty kind is valid; the field is optional.
func ValidStrategyKind(k StrategyKind) bool {
	switch k {
	case "", StrategyConfront, StrategyAvoid, StrategyMinimize:
		return true
	}
	return false
}

// Strategy is a "How might we..." statement derived from exactly one
// criterion.
type Strategy struct {
	ID                 uuid.UUID    `json:"id"`
	ProjectID          uuid.UUID    `json:"project_id"`
	CriterionID        uuid.UUID    `json:"criterion_id"`
	Content            string       `json:"content"`
	Kind               StrategyKind `json:"kind,omitempty"`
	SourceSuggestionID *uuid.UUID   `json:"source_suggestion_id,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// EnsureHMWPrefix prefixes content with "HMW " unless it already reads as a
// how-might-we statement.
func EnsureHMWPrefix(content string) string {
	lower := strings.ToLower(strings.TrimSpace(content))
	if strings.HasPrefix(lower, "hmw") || strings.HasPrefix(lower, "how might we") {
		return strings.TrimSpace(content)
	}
	return "HMW " + strings.TrimSpace(content)
}
