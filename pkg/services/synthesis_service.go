package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
	"github.com/matthewebeebe/observations-to-insights/pkg/models"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
	"github.com/matthewebeebe/observations-to-insights/pkg/repositories"
)

// SynthesisService owns the project tree: observations branching into
// harms, harms into criteria, criteria into strategies. All operations are
// scoped to the owning user.
type SynthesisService interface {
	CreateProject(ctx context.Context, ownerID, name string) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error)
	GetProject(ctx context.Context, ownerID string, projectID uuid.UUID) (*models.Project, error)
	// RenameProject is optimistic: a persistence failure keeps the new name
	// locally and is only logged, so typing flow is never disrupted.
	RenameProject(ctx context.Context, ownerID string, projectID uuid.UUID, name string) (*models.Project, error)
	// ToggleArchived rolls the flag back on persistence failure.
	ToggleArchived(ctx context.Context, ownerID string, projectID uuid.UUID) (*models.Project, error)
	// DeleteProject cascades: strategies, criteria, harms, observations,
	// then the project record.
	DeleteProject(ctx context.Context, ownerID string, projectID uuid.UUID) error

	// Tree returns the full in-memory snapshot all views render from.
	Tree(ctx context.Context, ownerID string, projectID uuid.UUID) (*Tree, error)

	AddObservation(ctx context.Context, ownerID string, projectID uuid.UUID, content string) (*models.Observation, error)
	// PasteObservations bulk-imports newline-delimited content.
	PasteObservations(ctx context.Context, ownerID string, projectID uuid.UUID, text string) ([]*models.Observation, error)
	// BranchObservation duplicates an observation as a new sibling
	// positioned immediately after the source, with interpolated order and
	// zero harms.
	BranchObservation(ctx context.Context, ownerID string, projectID, sourceID uuid.UUID) (*models.Observation, error)
	UpdateObservation(ctx context.Context, ownerID string, projectID, observationID uuid.UUID, content string) error
	// ReorderObservations moves an observation to targetIndex and persists
	// every sibling's new order. Persistence failures are logged, not
	// surfaced: the returned sequence already reflects user intent.
	ReorderObservations(ctx context.Context, ownerID string, projectID, movedID uuid.UUID, targetIndex int) ([]*models.Observation, error)
	DeleteObservation(ctx context.Context, ownerID string, projectID, observationID uuid.UUID) error

	AddHarm(ctx context.Context, ownerID string, projectID, observationID uuid.UUID, content string, sourceSuggestionID *uuid.UUID) (*models.Harm, error)
	AddCriterion(ctx context.Context, ownerID string, projectID, harmID uuid.UUID, content string, sourceSuggestionID *uuid.UUID) (*models.Criterion, error)
	AddStrategy(ctx context.Context, ownerID string, projectID, criterionID uuid.UUID, content string, kind models.StrategyKind, sourceSuggestionID *uuid.UUID) (*models.Strategy, error)
	UpdateHarm(ctx context.Context, ownerID string, projectID, harmID uuid.UUID, content string) error
	UpdateCriterion(ctx context.Context, ownerID string, projectID, criterionID uuid.UUID, content string) error
	UpdateStrategy(ctx context.Context, ownerID string, projectID, strategyID uuid.UUID, content string, kind models.StrategyKind) error
	DeleteHarm(ctx context.Context, ownerID string, projectID, harmID uuid.UUID) error
	DeleteCriterion(ctx context.Context, ownerID string, projectID, criterionID uuid.UUID) error
	DeleteStrategy(ctx context.Context, ownerID string, projectID, strategyID uuid.UUID) error

	// ToggleSuggestion creates an entity from a suggestion, or deletes the
	// previously created one. Returns the resulting selection state.
	ToggleSuggestion(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID, suggestionID uuid.UUID, content string) (bool, error)
	// ChildContents maps existing child content to entity ids under a
	// parent; the suggestion cache uses it to mark already-accepted
	// candidates as selected.
	ChildContents(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (map[string]uuid.UUID, error)
}

type synthesisService struct {
	store       *repositories.Store
	suggestions SuggestionService
	logger      *zap.Logger
}

// NewSynthesisService creates the tree-model service. The suggestion
// service is used only for best-effort insight-title enrichment and may be
// unconfigured.
func NewSynthesisService(store *repositories.Store, suggestions SuggestionService, logger *zap.Logger) SynthesisService {
	return &synthesisService{
		store:       store,
		suggestions: suggestions,
		logger:      logger.Named("synthesis"),
	}
}

// ownedProject loads the project and checks ownership.
func (s *synthesisService) ownedProject(ctx context.Context, ownerID string, projectID uuid.UUID) (*models.Project, error) {
	p, err := s.store.Projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, apperrors.ErrForbidden
	}
	return p, nil
}

func (s *synthesisService) CreateProject(ctx context.Context, ownerID, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ErrEmptyContent
	}

	p := &models.Project{OwnerID: ownerID, Name: name}
	if err := s.store.Projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *synthesisService) ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error) {
	return s.store.Projects.ListByOwner(ctx, ownerID)
}

func (s *synthesisService) GetProject(ctx context.Context, ownerID string, projectID uuid.UUID) (*models.Project, error) {
	return s.ownedProject(ctx, ownerID, projectID)
}

func (s *synthesisService) RenameProject(ctx context.Context, ownerID string, projectID uuid.UUID, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ErrEmptyContent
	}

	p, err := s.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	p.Name = name
	if err := s.store.Projects.Update(ctx, p); err != nil {
		// Optimistic: keep the new name locally so typing flow is not
		// disrupted. The store may now diverge until the next save.
		s.logger.Warn("project rename not persisted",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
	return p, nil
}

func (s *synthesisService) ToggleArchived(ctx context.Context, ownerID string, projectID uuid.UUID) (*models.Project, error) {
	p, err := s.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	p.Archived = !p.Archived
	if err := s.store.Projects.Update(ctx, p); err != nil {
		p.Archived = !p.Archived // roll back
		return nil, fmt.Errorf("toggle archived: %w", err)
	}
	return p, nil
}

func (s *synthesisService) DeleteProject(ctx context.Context, ownerID string, projectID uuid.UUID) error {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}

	// Leaves first so the store never holds a project-less child.
	if err := s.store.Strategies.DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.store.Criteria.DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.store.Harms.DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.store.Observations.DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	return s.store.Projects.Delete(ctx, projectID)
}

func (s *synthesisService) Tree(ctx context.Context, ownerID string, projectID uuid.UUID) (*Tree, error) {
	p, err := s.ownedProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	observations, err := s.store.Observations.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	harms, err := s.store.Harms.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	criteria, err := s.store.Criteria.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	strategies, err := s.store.Strategies.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &Tree{
		Project:      p,
		Observations: observations,
		Harms:        harms,
		Criteria:     criteria,
		Strategies:   strategies,
	}, nil
}

func (s *synthesisService) AddObservation(ctx context.Context, ownerID string, projectID uuid.UUID, content string) (*models.Observation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrEmptyContent
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	obs := &models.Observation{ProjectID: projectID, Content: content}
	if err := s.store.Observations.Create(ctx, obs); err != nil {
		return nil, fmt.Errorf("create observation: %w", err)
	}
	return obs, nil
}

func (s *synthesisService) PasteObservations(ctx context.Context, ownerID string, projectID uuid.UUID, text string) ([]*models.Observation, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	var created []*models.Observation
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		obs := &models.Observation{ProjectID: projectID, Content: line}
		if err := s.store.Observations.Create(ctx, obs); err != nil {
			return created, fmt.Errorf("create observation: %w", err)
		}
		created = append(created, obs)
	}
	return created, nil
}

func (s *synthesisService) BranchObservation(ctx context.Context, ownerID string, projectID, sourceID uuid.UUID) (*models.Observation, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	siblings, err := s.store.Observations.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	srcIdx := -1
	for i, o := range siblings {
		if o.ID == sourceID {
			srcIdx = i
			break
		}
	}
	if srcIdx < 0 {
		return nil, apperrors.ErrNotFound
	}

	// Midpoint insertion needs explicit orders on both neighbors. If any
	// sibling still sorts by creation time, materialize the current
	// sequence as explicit orders once.
	if !allOrdered(siblings) {
		orders := make(map[uuid.UUID]float64, len(siblings))
		for i, o := range siblings {
			v := float64(i)
			o.SortOrder = &v
			orders[o.ID] = v
		}
		if err := s.store.Observations.UpdateOrders(ctx, projectID, orders); err != nil {
			return nil, fmt.Errorf("materialize orders: %w", err)
		}
	}

	left := siblings[srcIdx].SortOrder
	var right *float64
	if srcIdx+1 < len(siblings) {
		right = siblings[srcIdx+1].SortOrder
	}
	order := models.MidpointOrder(left, right)

	branch := &models.Observation{
		ProjectID: projectID,
		Content:   siblings[srcIdx].Content,
		SortOrder: &order,
	}
	if err := s.store.Observations.Create(ctx, branch); err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	return branch, nil
}

func allOrdered(obs []*models.Observation) bool {
	for _, o := range obs {
		if o.SortOrder == nil {
			return false
		}
	}
	return true
}

func (s *synthesisService) UpdateObservation(ctx context.Context, ownerID string, projectID, observationID uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.ErrEmptyContent
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}

	obs, err := s.store.Observations.Get(ctx, observationID)
	if err != nil {
		return err
	}
	if obs.ProjectID != projectID {
		return apperrors.ErrNotFound
	}

	obs.Content = content
	if err := s.store.Observations.Update(ctx, obs); err != nil {
		// Optimistic: the edited content stays in the client's view; only
		// log the divergence.
		s.logger.Warn("observation edit not persisted",
			zap.String("observation_id", observationID.String()),
			zap.Error(err))
	}
	return nil
}

func (s *synthesisService) ReorderObservations(ctx context.Context, ownerID string, projectID, movedID uuid.UUID, targetIndex int) ([]*models.Observation, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	siblings, err := s.store.Observations.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	from := -1
	for i, o := range siblings {
		if o.ID == movedID {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, apperrors.ErrNotFound
	}
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex >= len(siblings) {
		targetIndex = len(siblings) - 1
	}

	// Standard array move, then every sibling's order becomes its index.
	moved := siblings[from]
	siblings = append(siblings[:from], siblings[from+1:]...)
	siblings = append(siblings[:targetIndex], append([]*models.Observation{moved}, siblings[targetIndex:]...)...)

	orders := make(map[uuid.UUID]float64, len(siblings))
	for i, o := range siblings {
		v := float64(i)
		o.SortOrder = &v
		orders[o.ID] = v
	}

	if err := s.store.Observations.UpdateOrders(ctx, projectID, orders); err != nil {
		// The visual reorder already reflects user intent; failures are
		// logged, not surfaced.
		s.logger.Warn("reorder not persisted",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
	return siblings, nil
}

func (s *synthesisService) DeleteObservation(ctx context.Context, ownerID string, projectID, observationID uuid.UUID) error {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	obs, err := s.store.Observations.Get(ctx, observationID)
	if err != nil {
		return err
	}
	if obs.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	// Harms referencing only this observation become orphaned and
	// unreachable; they are not an error.
	return s.store.Observations.Delete(ctx, observationID)
}

func (s *synthesisService) AddHarm(ctx context.Context, ownerID string, projectID, observationID uuid.UUID, content string, sourceSuggestionID *uuid.UUID) (*models.Harm, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrEmptyContent
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	obs, err := s.store.Observations.Get(ctx, observationID)
	if err != nil {
		return nil, err
	}
	if obs.ProjectID != projectID {
		return nil, apperrors.ErrNotFound
	}

	harm := &models.Harm{
		ProjectID:          projectID,
		Content:            content,
		ObservationIDs:     []uuid.UUID{observationID},
		SourceSuggestionID: sourceSuggestionID,
	}
	if err := s.store.Harms.Create(ctx, harm); err != nil {
		return nil, fmt.Errorf("create harm: %w", err)
	}
	return harm, nil
}

func (s *synthesisService) AddCriterion(ctx context.Context, ownerID string, projectID, harmID uuid.UUID, content string, sourceSuggestionID *uuid.UUID) (*models.Criterion, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrEmptyContent
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	harm, err := s.store.Harms.Get(ctx, harmID)
	if err != nil {
		return nil, err
	}
	if harm.ProjectID != projectID {
		return nil, apperrors.ErrNotFound
	}

	criterion := &models.Criterion{
		ProjectID:          projectID,
		HarmID:             harmID,
		Content:            content,
		SourceSuggestionID: sourceSuggestionID,
	}
	if err := s.store.Criteria.Create(ctx, criterion); err != nil {
		return nil, fmt.Errorf("create criterion: %w", err)
	}

	s.maybeGenerateInsightTitle(ownerID, projectID, harm, criterion)
	return criterion, nil
}

// maybeGenerateInsightTitle fires the one-shot title enrichment when a
// criterion lands under an observation's first harm and the observation is
// still untitled. Best effort: failure leaves the title unset and the next
// qualifying criterion re-arms the same trigger.
func (s *synthesisService) maybeGenerateInsightTitle(ownerID string, projectID uuid.UUID, harm *models.Harm, criterion *models.Criterion) {
	go func() {
		ctx := context.Background()

		tree, err := s.Tree(ctx, ownerID, projectID)
		if err != nil {
			s.logger.Warn("insight title: tree load failed", zap.Error(err))
			return
		}

		obs := tree.ObservationForHarm(harm.ID)
		if obs == nil || obs.Title != "" {
			return
		}
		firstHarms := tree.HarmsForObservation(obs.ID)
		if len(firstHarms) == 0 || firstHarms[0].ID != harm.ID {
			return
		}

		title, err := s.suggestions.RequestText(ctx, prompts.KindInsightTitle, map[string]string{
			"observation": obs.Content,
			"harm":        harm.Content,
			"criterion":   criterion.Content,
		})
		if err != nil || strings.TrimSpace(title) == "" {
			s.logger.Warn("insight title generation failed",
				zap.String("observation_id", obs.ID.String()),
				zap.Error(err))
			return
		}

		obs.Title = strings.TrimSpace(title)
		if err := s.store.Observations.Update(ctx, obs); err != nil {
			s.logger.Warn("insight title not persisted",
				zap.String("observation_id", obs.ID.String()),
				zap.Error(err))
		}
	}()
}

func (s *synthesisService) AddStrategy(ctx context.Context, ownerID string, projectID, criterionID uuid.UUID, content string, kind models.StrategyKind, sourceSuggestionID *uuid.UUID) (*models.Strategy, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrEmptyContent
	}
	if !models.ValidStrategyKind(kind) {
		return nil, apperrors.ErrInvalidKind
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	criterion, err := s.store.Criteria.Get(ctx, criterionID)
	if err != nil {
		return nil, err
	}
	if criterion.ProjectID != projectID {
		return nil, apperrors.ErrNotFound
	}

	strategy := &models.Strategy{
		ProjectID:          projectID,
		CriterionID:        criterionID,
		Content:            models.EnsureHMWPrefix(content),
		Kind:               kind,
		SourceSuggestionID: sourceSuggestionID,
	}
	if err := s.store.Strategies.Create(ctx, strategy); err != nil {
		return nil, fmt.Errorf("create strategy: %w", err)
	}
	return strategy, nil
}

func (s *synthesisService) UpdateHarm(ctx context.Context, ownerID string, projectID, harmID uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.ErrEmptyContent
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	harm, err := s.store.Harms.Get(ctx, harmID)
	if err != nil {
		return err
	}
	if harm.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	harm.Content = content
	if err := s.store.Harms.Update(ctx, harm); err != nil {
		s.logger.Warn("harm edit not persisted", zap.String("harm_id", harmID.String()), zap.Error(err))
	}
	return nil
}

func (s *synthesisService) UpdateCriterion(ctx context.Context, ownerID string, projectID, criterionID uuid.UUID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.ErrEmptyContent
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	criterion, err := s.store.Criteria.Get(ctx, criterionID)
	if err != nil {
		return err
	}
	if criterion.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	criterion.Content = content
	if err := s.store.Criteria.Update(ctx, criterion); err != nil {
		s.logger.Warn("criterion edit not persisted", zap.String("criterion_id", criterionID.String()), zap.Error(err))
	}
	return nil
}

func (s *synthesisService) UpdateStrategy(ctx context.Context, ownerID string, projectID, strategyID uuid.UUID, content string, kind models.StrategyKind) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.ErrEmptyContent
	}
	if !models.ValidStrategyKind(kind) {
		return apperrors.ErrInvalidKind
	}
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	strategy, err := s.store.Strategies.Get(ctx, strategyID)
	if err != nil {
		return err
	}
	if strategy.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	strategy.Content = models.EnsureHMWPrefix(content)
	strategy.Kind = kind
	if err := s.store.Strategies.Update(ctx, strategy); err != nil {
		s.logger.Warn("strategy edit not persisted", zap.String("strategy_id", strategyID.String()), zap.Error(err))
	}
	return nil
}

func (s *synthesisService) DeleteHarm(ctx context.Context, ownerID string, projectID, harmID uuid.UUID) error {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	harm, err := s.store.Harms.Get(ctx, harmID)
	if err != nil {
		return err
	}
	if harm.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	return s.store.Harms.Delete(ctx, harmID)
}

func (s *synthesisService) DeleteCriterion(ctx context.Context, ownerID string, projectID, criterionID uuid.UUID) error {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	criterion, err := s.store.Criteria.Get(ctx, criterionID)
	if err != nil {
		return err
	}
	if criterion.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	return s.store.Criteria.Delete(ctx, criterionID)
}

func (s *synthesisService) DeleteStrategy(ctx context.Context, ownerID string, projectID, strategyID uuid.UUID) error {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	strategy, err := s.store.Strategies.Get(ctx, strategyID)
	if err != nil {
		return err
	}
	if strategy.ProjectID != projectID {
		return apperrors.ErrNotFound
	}
	return s.store.Strategies.Delete(ctx, strategyID)
}

func (s *synthesisService) ToggleSuggestion(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID, suggestionID uuid.UUID, content string) (bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return false, apperrors.ErrEmptyContent
	}

	existing, err := s.findAcceptedEntity(ctx, ownerID, projectID, kind, parentID, suggestionID, content)
	if err != nil {
		return false, err
	}

	if existing != uuid.Nil {
		// Toggle off: delete the previously accepted (or identical manual)
		// entity. If the delete fails the entity stays, keeping the view
		// consistent with the store.
		switch kind {
		case prompts.KindHarms:
			err = s.DeleteHarm(ctx, ownerID, projectID, existing)
		case prompts.KindCriteria:
			err = s.DeleteCriterion(ctx, ownerID, projectID, existing)
		case prompts.KindStrategies:
			err = s.DeleteStrategy(ctx, ownerID, projectID, existing)
		}
		if err != nil {
			return true, err
		}
		return false, nil
	}

	// Toggle on: create the entity, carrying the suggestion id as
	// provenance so toggle-off survives later content edits.
	src := suggestionID
	switch kind {
	case prompts.KindHarms:
		_, err = s.AddHarm(ctx, ownerID, projectID, parentID, content, &src)
	case prompts.KindCriteria:
		_, err = s.AddCriterion(ctx, ownerID, projectID, parentID, content, &src)
	case prompts.KindStrategies:
		_, err = s.AddStrategy(ctx, ownerID, projectID, parentID, content, "", &src)
	default:
		return false, apperrors.ErrInvalidKind
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// findAcceptedEntity locates the child entity a suggestion corresponds to:
// first by provenance link, then by exact content equality under the same
// parent (which is what keeps manually typed and accepted entities
// interchangeable).
func (s *synthesisService) findAcceptedEntity(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID, suggestionID uuid.UUID, content string) (uuid.UUID, error) {
	contents, provenance, err := s.children(ctx, ownerID, projectID, kind, parentID)
	if err != nil {
		return uuid.Nil, err
	}

	if id, ok := provenance[suggestionID]; ok {
		return id, nil
	}
	if id, ok := contents[content]; ok {
		return id, nil
	}
	// Strategies persist with the HMW prefix applied.
	if kind == prompts.KindStrategies {
		if id, ok := contents[models.EnsureHMWPrefix(content)]; ok {
			return id, nil
		}
	}
	return uuid.Nil, nil
}

func (s *synthesisService) ChildContents(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (map[string]uuid.UUID, error) {
	contents, _, err := s.children(ctx, ownerID, projectID, kind, parentID)
	return contents, err
}

// children returns content → id and provenance suggestion id → id maps for
// the parent's existing children of the kind.
func (s *synthesisService) children(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (map[string]uuid.UUID, map[uuid.UUID]uuid.UUID, error) {
	if _, err := s.ownedProject(ctx, ownerID, projectID); err != nil {
		return nil, nil, err
	}

	contents := make(map[string]uuid.UUID)
	provenance := make(map[uuid.UUID]uuid.UUID)

	switch kind {
	case prompts.KindHarms:
		harms, err := s.store.Harms.ListByProject(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		for _, h := range harms {
			if !h.DerivedFrom(parentID) {
				continue
			}
			contents[h.Content] = h.ID
			if h.SourceSuggestionID != nil {
				provenance[*h.SourceSuggestionID] = h.ID
			}
		}
	case prompts.KindCriteria:
		criteria, err := s.store.Criteria.ListByProject(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range criteria {
			if c.HarmID != parentID {
				continue
			}
			contents[c.Content] = c.ID
			if c.SourceSuggestionID != nil {
				provenance[*c.SourceSuggestionID] = c.ID
			}
		}
	case prompts.KindStrategies:
		strategies, err := s.store.Strategies.ListByProject(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		for _, st := range strategies {
			if st.CriterionID != parentID {
				continue
			}
			contents[st.Content] = st.ID
			if st.SourceSuggestionID != nil {
				provenance[*st.SourceSuggestionID] = st.ID
			}
		}
	default:
		return nil, nil, apperrors.ErrInvalidKind
	}
	return contents, provenance, nil
}

var _ SynthesisService = (*synthesisService)(nil)
