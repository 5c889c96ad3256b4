package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
	"github.com/matthewebeebe/observations-to-insights/pkg/models"
)

// memoryStore is the shared state behind the in-memory repositories. It
// backs local-only mode: when no database is configured every operation
// succeeds against process memory with generated ids and no persistence.
type memoryStore struct {
	mu           sync.RWMutex
	projects     map[uuid.UUID]*models.Project
	observations map[uuid.UUID]*models.Observation
	harms        map[uuid.UUID]*models.Harm
	criteria     map[uuid.UUID]*models.Criterion
	strategies   map[uuid.UUID]*models.Strategy
	seq          int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		projects:     make(map[uuid.UUID]*models.Project),
		observations: make(map[uuid.UUID]*models.Observation),
		harms:        make(map[uuid.UUID]*models.Harm),
		criteria:     make(map[uuid.UUID]*models.Criterion),
		strategies:   make(map[uuid.UUID]*models.Strategy),
	}
}

// now returns a strictly increasing timestamp so creation-order sorting is
// stable even when entities are created within the same clock tick.
func (m *memoryStore) now() time.Time {
	m.seq++
	return time.Now().UTC().Add(time.Duration(m.seq) * time.Nanosecond)
}

func (m *memoryStore) touchProject(id uuid.UUID) {
	if p, ok := m.projects[id]; ok {
		p.UpdatedAt = time.Now().UTC()
	}
}

// memProjectRepository implements ProjectRepository in memory.
type memProjectRepository struct{ s *memoryStore }

func (r *memProjectRepository) Create(_ context.Context, project *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := r.s.now()
	project.CreatedAt = now
	project.UpdatedAt = now

	cp := *project
	r.s.projects[project.ID] = &cp
	return nil
}

func (r *memProjectRepository) Get(_ context.Context, id uuid.UUID) (*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Project
	for _, p := range r.s.projects {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *memProjectRepository) Update(_ context.Context, project *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.projects[project.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Name = project.Name
	existing.Archived = project.Archived
	existing.UpdatedAt = time.Now().UTC()
	project.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *memProjectRepository) Touch(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	r.s.touchProject(id)
	return nil
}

func (r *memProjectRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.projects, id)
	return nil
}

// memObservationRepository implements ObservationRepository in memory.
type memObservationRepository struct{ s *memoryStore }

func (r *memObservationRepository) Create(_ context.Context, obs *models.Observation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	obs.CreatedAt = r.s.now()

	cp := *obs
	r.s.observations[obs.ID] = &cp
	r.s.touchProject(obs.ProjectID)
	return nil
}

func (r *memObservationRepository) Get(_ context.Context, id uuid.UUID) (*models.Observation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.observations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memObservationRepository) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Observation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Observation
	for _, o := range r.s.observations {
		if o.ProjectID == projectID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortObservations(out)
	return out, nil
}

func (r *memObservationRepository) Update(_ context.Context, obs *models.Observation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.observations[obs.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Content = obs.Content
	existing.Title = obs.Title
	existing.SortOrder = obs.SortOrder
	r.s.touchProject(existing.ProjectID)
	return nil
}

func (r *memObservationRepository) UpdateOrders(_ context.Context, projectID uuid.UUID, orders map[uuid.UUID]float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, order := range orders {
		if o, ok := r.s.observations[id]; ok && o.ProjectID == projectID {
			v := order
			o.SortOrder = &v
		}
	}
	r.s.touchProject(projectID)
	return nil
}

func (r *memObservationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.observations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.observations, id)
	r.s.touchProject(o.ProjectID)
	return nil
}

func (r *memObservationRepository) DeleteByProject(_ context.Context, projectID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, o := range r.s.observations {
		if o.ProjectID == projectID {
			delete(r.s.observations, id)
		}
	}
	return nil
}

// sortObservations orders by ascending sort_order (unordered rows last),
// ties broken by creation time ascending. Matches the postgres ORDER BY.
func sortObservations(obs []*models.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		oi, iOK := obs[i].EffectiveOrder()
		oj, jOK := obs[j].EffectiveOrder()
		switch {
		case iOK && jOK:
			if oi != oj {
				return oi < oj
			}
			return obs[i].CreatedAt.Before(obs[j].CreatedAt)
		case iOK:
			return true
		case jOK:
			return false
		default:
			return obs[i].CreatedAt.Before(obs[j].CreatedAt)
		}
	})
}

// memHarmRepository implements HarmRepository in memory.
type memHarmRepository struct{ s *memoryStore }

func (r *memHarmRepository) Create(_ context.Context, harm *models.Harm) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if harm.ID == uuid.Nil {
		harm.ID = uuid.New()
	}
	harm.CreatedAt = r.s.now()

	cp := *harm
	cp.ObservationIDs = append([]uuid.UUID(nil), harm.ObservationIDs...)
	r.s.harms[harm.ID] = &cp
	r.s.touchProject(harm.ProjectID)
	return nil
}

func (r *memHarmRepository) Get(_ context.Context, id uuid.UUID) (*models.Harm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.harms[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *h
	cp.ObservationIDs = append([]uuid.UUID(nil), h.ObservationIDs...)
	return &cp, nil
}

func (r *memHarmRepository) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Harm, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Harm
	for _, h := range r.s.harms {
		if h.ProjectID == projectID {
			cp := *h
			cp.ObservationIDs = append([]uuid.UUID(nil), h.ObservationIDs...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memHarmRepository) Update(_ context.Context, harm *models.Harm) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.harms[harm.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Content = harm.Content
	existing.ObservationIDs = append([]uuid.UUID(nil), harm.ObservationIDs...)
	r.s.touchProject(existing.ProjectID)
	return nil
}

func (r *memHarmRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.harms[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.harms, id)
	r.s.touchProject(h.ProjectID)
	return nil
}

func (r *memHarmRepository) DeleteByProject(_ context.Context, projectID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, h := range r.s.harms {
		if h.ProjectID == projectID {
			delete(r.s.harms, id)
		}
	}
	return nil
}

// memCriterionRepository implements CriterionRepository in memory.
type memCriterionRepository struct{ s *memoryStore }

func (r *memCriterionRepository) Create(_ context.Context, c *models.Criterion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.s.now()

	cp := *c
	r.s.criteria[c.ID] = &cp
	r.s.touchProject(c.ProjectID)
	return nil
}

func (r *memCriterionRepository) Get(_ context.Context, id uuid.UUID) (*models.Criterion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.criteria[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCriterionRepository) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Criterion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Criterion
	for _, c := range r.s.criteria {
		if c.ProjectID == projectID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memCriterionRepository) Update(_ context.Context, c *models.Criterion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.criteria[c.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Content = c.Content
	r.s.touchProject(existing.ProjectID)
	return nil
}

func (r *memCriterionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.criteria[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.criteria, id)
	r.s.touchProject(c.ProjectID)
	return nil
}

func (r *memCriterionRepository) DeleteByProject(_ context.Context, projectID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, c := range r.s.criteria {
		if c.ProjectID == projectID {
			delete(r.s.criteria, id)
		}
	}
	return nil
}

// memStrategyRepository implements StrategyRepository in memory.
type memStrategyRepository struct{ s *memoryStore }

func (r *memStrategyRepository) Create(_ context.Context, s *models.Strategy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = r.s.now()

	cp := *s
	r.s.strategies[s.ID] = &cp
	r.s.touchProject(s.ProjectID)
	return nil
}

func (r *memStrategyRepository) Get(_ context.Context, id uuid.UUID) (*models.Strategy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	s, ok := r.s.strategies[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memStrategyRepository) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Strategy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Strategy
	for _, s := range r.s.strategies {
		if s.ProjectID == projectID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memStrategyRepository) Update(_ context.Context, s *models.Strategy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.strategies[s.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Content = s.Content
	existing.Kind = s.Kind
	r.s.touchProject(existing.ProjectID)
	return nil
}

func (r *memStrategyRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	s, ok := r.s.strategies[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.strategies, id)
	r.s.touchProject(s.ProjectID)
	return nil
}

func (r *memStrategyRepository) DeleteByProject(_ context.Context, projectID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, s := range r.s.strategies {
		if s.ProjectID == projectID {
			delete(r.s.strategies, id)
		}
	}
	return nil
}

var (
	_ ProjectRepository     = (*memProjectRepository)(nil)
	_ ObservationRepository = (*memObservationRepository)(nil)
	_ HarmRepository        = (*memHarmRepository)(nil)
	_ CriterionRepository   = (*memCriterionRepository)(nil)
	_ StrategyRepository    = (*memStrategyRepository)(nil)
)

// NewMemoryStore creates a Store backed entirely by process memory.
func NewMemoryStore() *Store {
	s := newMemoryStore()
	return &Store{
		Projects:     &memProjectRepository{s: s},
		Observations: &memObservationRepository{s: s},
		Harms:        &memHarmRepository{s: s},
		Criteria:     &memCriterionRepository{s: s},
		Strategies:   &memStrategyRepository{s: s},
		Mode:         "local",
	}
}
