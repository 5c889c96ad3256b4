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

// observationRepository implements ObservationRepository using PostgreSQL.
// Writes touch the parent project's updated_at.
type observationRepository struct {
	db       *database.DB
	projects ProjectRepository
}

// NewObservationRepository creates a new PostgreSQL observation repository.
func NewObservationRepository(db *database.DB, projects ProjectRepository) ObservationRepository {
	return &observationRepository{db: db, projects: projects}
}

func (r *observationRepository) Create(ctx context.Context, obs *models.Observation) error {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	obs.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO observations (id, project_id, content, title, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		obs.ID, obs.ProjectID, obs.Content, obs.Title, obs.SortOrder, obs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}
	return r.projects.Touch(ctx, obs.ProjectID)
}

func (r *observationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Observation, error) {
	query := `
		SELECT id, project_id, content, title, sort_order, created_at
		FROM observations
		WHERE id = $1`

	var o models.Observation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.ProjectID, &o.Content, &o.Title, &o.SortOrder, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}
	return &o, nil
}

func (r *observationRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Observation, error) {
	query := `
		SELECT id, project_id, content, title, sort_order, created_at
		FROM observations
		WHERE project_id = $1
		ORDER BY sort_order ASC NULLS LAST, created_at ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.ProjectID, &o.Content, &o.Title, &o.SortOrder, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (r *observationRepository) Update(ctx context.Context, obs *models.Observation) error {
	query := `
		UPDATE observations
		SET content = $2, title = $3, sort_order = $4
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, obs.ID, obs.Content, obs.Title, obs.SortOrder)
	if err != nil {
		return fmt.Errorf("failed to update observation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return r.projects.Touch(ctx, obs.ProjectID)
}

func (r *observationRepository) UpdateOrders(ctx context.Context, projectID uuid.UUID, orders map[uuid.UUID]float64) error {
	batch := &pgx.Batch{}
	for id, order := range orders {
		batch.Queue(`UPDATE observations SET sort_order = $2 WHERE id = $1 AND project_id = $3`,
			id, order, projectID)
	}

	results := r.db.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to update observation orders: %w", err)
	}
	return r.projects.Touch(ctx, projectID)
}

func (r *observationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	obs, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM observations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete observation: %w", err)
	}
	return r.projects.Touch(ctx, obs.ProjectID)
}

func (r *observationRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM observations WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete observations: %w", err)
	}
	return nil
}

var _ ObservationRepository = (*observationRepository)(nil)
