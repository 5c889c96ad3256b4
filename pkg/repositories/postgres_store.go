package repositories

import "github.com/matthewebeebe/observations-to-insights/pkg/database"

// NewPostgresStore creates a Store backed by PostgreSQL.
func NewPostgresStore(db *database.DB) *Store {
	projects := NewProjectRepository(db)
	return &Store{
		Projects:     projects,
		Observations: NewObservationRepository(db, projects),
		Harms:        NewHarmRepository(db, projects),
		Criteria:     NewCriterionRepository(db, projects),
		Strategies:   NewStrategyRepository(db, projects),
		Mode:         "postgres",
	}
}
