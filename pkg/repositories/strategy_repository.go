package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
	"github.com/matthewebeebe/observations-to-insights/pkg/database"
	"github.com/matthewebeebe/observations-to-insights/pkg/models"
)

// strategyRepository implements StrategyRepository using PostgreSQL.
type strategyRepository struct {
	db       *database.DB
	projects ProjectRepository
}

// NewStrategyRepository creates a new PostgreSQL strategy repository.
func NewStrategyRepository(db *database.DB, projects ProjectRepository) StrategyRepository {
	return &strategyRepository{db: db, projects: projects}
}

func (r *strategyRepository) Create(ctx context.Context, s *models.Strategy) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO strategies (id, project_id, criterion_id, content, kind, source_suggestion_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.ProjectID, s.CriterionID, s.Content, string(s.Kind),
		s.SourceSuggestionID, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create strategy: %w", err)
	}
	return r.projects.Touch(ctx, s.ProjectID)
}

func (r *strategyRepository) Get(ctx context.Context, id uuid.UUID) (*models.Strategy, error) {
	query := `
		SELECT id, project_id, criterion_id, content, kind, source_suggestion_id, created_at
		FROM strategies
		WHERE id = $1`

	var s models.Strategy
	var kind string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ProjectID, &s.CriterionID, &s.Content, &kind, &s.SourceSuggestionID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	s.Kind = models.StrategyKind(kind)
	return &s, nil
}

func (r *strategyRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Strategy, error) {
	query := `
		SELECT id, project_id, criterion_id, content, kind, source_suggestion_id, created_at
		FROM strategies
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var out []*models.Strategy
	for rows.Next() {
		var s models.Strategy
		var kind string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.CriterionID, &s.Content, &kind, &s.SourceSuggestionID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		s.Kind = models.StrategyKind(kind)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *strategyRepository) Update(ctx context.Context, s *models.Strategy) error {
	query := `UPDATE strategies SET content = $2, kind = $3 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, s.ID, s.Content, string(s.Kind))
	if err != nil {
		return fmt.Errorf("failed to update strategy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return r.projects.Touch(ctx, s.ProjectID)
}

func (r *strategyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM strategies WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}
	return r.projects.Touch(ctx, s.ProjectID)
}

func (r *strategyRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM strategies WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete strategies: %w", err)
	}
	return nil
}

var _ StrategyRepository = (*strategyRepository)(nil)
