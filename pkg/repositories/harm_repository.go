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

// harmRepository implements HarmRepository using PostgreSQL.
type harmRepository struct {
	db       *database.DB
	projects ProjectRepository
}

// NewHarmRepository creates a new PostgreSQL harm repository.
func NewHarmRepository(db *database.DB, projects ProjectRepository) HarmRepository {
	return &harmRepository{db: db, projects: projects}
}

func (r *harmRepository) Create(ctx context.Context, harm *models.Harm) error {
	if harm.ID == uuid.Nil {
		harm.ID = uuid.New()
	}
	harm.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO harms (id, project_id, content, observation_ids, source_suggestion_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		harm.ID, harm.ProjectID, harm.Content, harm.ObservationIDs,
		harm.SourceSuggestionID, harm.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create harm: %w", err)
	}
	return r.projects.Touch(ctx, harm.ProjectID)
}

func (r *harmRepository) Get(ctx context.Context, id uuid.UUID) (*models.Harm, error) {
	query := `
		SELECT id, project_id, content, observation_ids, source_suggestion_id, created_at
		FROM harms
		WHERE id = $1`

	var h models.Harm
	err := r.db.QueryRow(ctx, query, id).Scan(
		&h.ID, &h.ProjectID, &h.Content, &h.ObservationIDs, &h.SourceSuggestionID, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get harm: %w", err)
	}
	return &h, nil
}

func (r *harmRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Harm, error) {
	query := `
		SELECT id, project_id, content, observation_ids, source_suggestion_id, created_at
		FROM harms
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list harms: %w", err)
	}
	defer rows.Close()

	var out []*models.Harm
	for rows.Next() {
		var h models.Harm
		if err := rows.Scan(&h.ID, &h.ProjectID, &h.Content, &h.ObservationIDs, &h.SourceSuggestionID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan harm: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (r *harmRepository) Update(ctx context.Context, harm *models.Harm) error {
	query := `
		UPDATE harms
		SET content = $2, observation_ids = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, harm.ID, harm.Content, harm.ObservationIDs)
	if err != nil {
		return fmt.Errorf("failed to update harm: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return r.projects.Touch(ctx, harm.ProjectID)
}

func (r *harmRepository) Delete(ctx context.Context, id uuid.UUID) error {
	harm, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM harms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete harm: %w", err)
	}
	return r.projects.Touch(ctx, harm.ProjectID)
}

func (r *harmRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM harms WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete harms: %w", err)
	}
	return nil
}

var _ HarmRepository = (*harmRepository)(nil)
