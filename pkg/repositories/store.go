// Package repositories provides data access for the worksheet entities.
//
// Two implementations exist behind the same interfaces: a PostgreSQL store
// and an in-memory store used when no database is configured (local-only
// mode). Every write to a child entity refreshes the parent project's
// updated_at timestamp, so "recently active" project listings never need a
// join.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/matthewebeebe/observations-to-insights/pkg/models"
)

// ProjectRepository defines data access for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	// ListByOwner returns the owner's projects, most recently updated first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	// Touch refreshes updated_at without changing any other field.
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ObservationRepository defines data access for observations.
type ObservationRepository interface {
	Create(ctx context.Context, obs *models.Observation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Observation, error)
	// ListByProject returns observations ordered by ascending sort_order
	// (unordered rows last), ties broken by creation time.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Observation, error)
	Update(ctx context.Context, obs *models.Observation) error
	// UpdateOrders persists a batch of sort_order values in one call.
	UpdateOrders(ctx context.Context, projectID uuid.UUID, orders map[uuid.UUID]float64) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// HarmRepository defines data access for harms.
type HarmRepository interface {
	Create(ctx context.Context, harm *models.Harm) error
	Get(ctx context.Context, id uuid.UUID) (*models.Harm, error)
	// ListByProject returns harms in creation order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Harm, error)
	Update(ctx context.Context, harm *models.Harm) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// CriterionRepository defines data access for criteria.
type CriterionRepository interface {
	Create(ctx context.Context, c *models.Criterion) error
	Get(ctx context.Context, id uuid.UUID) (*models.Criterion, error)
	// ListByProject returns criteria in creation order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Criterion, error)
	Update(ctx context.Context, c *models.Criterion) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// StrategyRepository defines data access for strategies.
type StrategyRepository interface {
	Create(ctx context.Context, s *models.Strategy) error
	Get(ctx context.Context, id uuid.UUID) (*models.Strategy, error)
	// ListByProject returns strategies in creation order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Strategy, error)
	Update(ctx context.Context, s *models.Strategy) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

// Store bundles the per-entity repositories.
type Store struct {
	Projects     ProjectRepository
	Observations ObservationRepository
	Harms        HarmRepository
	Criteria     CriterionRepository
	Strategies   StrategyRepository

	// Mode is "postgres" or "local" and is reported by the health endpoint.
	Mode string
}
