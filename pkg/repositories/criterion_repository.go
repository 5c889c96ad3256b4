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

// criterionRepository implements CriterionRepository using PostgreSQL.
type criterionRepository struct {
	db       *database.DB
	projects ProjectRepository
}

// NewCriterionRepository creates a new PostgreSQL criterion repository.
func NewCriterionRepository(db *database.DB, projects ProjectRepository) CriterionRepository {
	return &criterionRepository{db: db, projects: projects}
}

func (r *criterionRepository) Create(ctx context.Context, c *models.Criterion) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO criteria (id, project_id, harm_id, content, source_suggestion_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.ProjectID, c.HarmID, c.Content, c.SourceSuggestionID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create criterion: %w", err)
	}
	return r.projects.Touch(ctx, c.ProjectID)
}

func (r *criterionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Criterion, error) {
	query := `
		SELECT id, project_id, harm_id, content, source_suggestion_id, created_at
		FROM criteria
		WHERE id = $1`

	var c models.Criterion
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ProjectID, &c.HarmID, &c.Content, &c.SourceSuggestionID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get criterion: %w", err)
	}
	return &c, nil
}

func (r *criterionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Criterion, error) {
	query := `
		SELECT id, project_id, harm_id, content, source_suggestion_id, created_at
		FROM criteria
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}
	defer rows.Close()

	var out []*models.Criterion
	for rows.Next() {
		var c models.Criterion
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.HarmID, &c.Content, &c.SourceSuggestionID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan criterion: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *criterionRepository) Update(ctx context.Context, c *models.Criterion) error {
	query := `UPDATE criteria SET content = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, c.ID, c.Content)
	if err != nil {
		return fmt.Errorf("failed to update criterion: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return r.projects.Touch(ctx, c.ProjectID)
}

func (r *criterionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	c, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM criteria WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete criterion: %w", err)
	}
	return r.projects.Touch(ctx, c.ProjectID)
}

func (r *criterionRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM criteria WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete criteria: %w", err)
	}
	return nil
}

var _ CriterionRepository = (*criterionRepository)(nil)
