package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
)

// CacheState tracks a suggestion panel's lifecycle for one parent entity.
type CacheState string

const (
	// StateNotFetched means no request has been made for this parent yet.
	StateNotFetched CacheState = "not_fetched"
	// StateLoading means a fetch is in flight.
	StateLoading CacheState = "loading"
	// StateLoaded means at least one candidate is cached.
	StateLoaded CacheState = "loaded"
	// StateLoadedEmpty means a fetch completed with nothing to show,
	// either an empty result or a failure.
	StateLoadedEmpty CacheState = "loaded_empty"
)

// Suggestion is one cached candidate. The id is minted at fetch time and
// identifies the candidate for toggling; Selected mirrors whether a child
// entity currently corresponds to it.
type Suggestion struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Selected bool      `json:"selected"`
}

// CacheEntry is the cached panel state for one (kind, parent) pair.
type CacheEntry struct {
	State       CacheState    `json:"state"`
	Suggestions []*Suggestion `json:"suggestions"`
	// LastError carries the most recent fetch failure, kept so the panel
	// can explain an empty state. Cleared by a successful fetch.
	LastError string `json:"last_error,omitempty"`
}

type cacheKey struct {
	kind     prompts.Kind
	parentID uuid.UUID
}

// SuggestionCacheService caches generated candidates per parent entity so
// reopening a panel never re-bills a completion. Results are cached even
// when empty; only an explicit generate-more issues another request.
type SuggestionCacheService interface {
	// Ensure returns the cached entry for the parent, fetching once if the
	// parent has never been fetched. Concurrent callers during the first
	// fetch observe the loading state instead of issuing duplicates.
	// Fetch failures degrade to a loaded-empty entry; Ensure errors only
	// on ownership or lookup problems.
	Ensure(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (*CacheEntry, error)

	// GenerateMore requests an additional batch and appends it. Repeats
	// across batches are allowed; only within-batch duplicates were
	// removed upstream.
	GenerateMore(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (*CacheEntry, error)

	// Entry returns the current cached entry without triggering a fetch.
	Entry(kind prompts.Kind, parentID uuid.UUID) *CacheEntry

	// SetSelected flips one candidate's selection flag after a toggle.
	SetSelected(kind prompts.Kind, parentID, suggestionID uuid.UUID, selected bool)
}

type suggestionCache struct {
	synthesis   SynthesisService
	suggestions SuggestionService
	logger      *zap.Logger

	mu      sync.Mutex
	entries map[cacheKey]*CacheEntry
}

// NewSuggestionCache creates the per-parent suggestion cache. The cache is
// process-local; restarting the service forgets fetched candidates, which
// only costs a refetch.
func NewSuggestionCache(synthesis SynthesisService, suggestions SuggestionService, logger *zap.Logger) SuggestionCacheService {
	return &suggestionCache{
		synthesis:   synthesis,
		suggestions: suggestions,
		logger:      logger.Named("suggestion_cache"),
		entries:     make(map[cacheKey]*CacheEntry),
	}
}

func (c *suggestionCache) Ensure(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (*CacheEntry, error) {
	key := cacheKey{kind: kind, parentID: parentID}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		snapshot := e.snapshot()
		c.mu.Unlock()
		return snapshot, nil
	}
	// First caller claims the fetch; everyone else sees loading.
	c.entries[key] = &CacheEntry{State: StateLoading}
	c.mu.Unlock()

	return c.fetch(ctx, ownerID, projectID, kind, parentID, key, nil)
}

func (c *suggestionCache) GenerateMore(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (*CacheEntry, error) {
	key := cacheKey{kind: kind, parentID: parentID}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.entries[key] = &CacheEntry{State: StateLoading}
		c.mu.Unlock()
		return c.fetch(ctx, ownerID, projectID, kind, parentID, key, nil)
	}
	if e.State == StateLoading {
		snapshot := e.snapshot()
		c.mu.Unlock()
		return snapshot, nil
	}
	existing := e.Suggestions
	e.State = StateLoading
	c.mu.Unlock()

	return c.fetch(ctx, ownerID, projectID, kind, parentID, key, existing)
}

// fetch runs one completion request and installs the result, appending to
// keep when this is a generate-more call.
func (c *suggestionCache) fetch(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID, key cacheKey, keep []*Suggestion) (*CacheEntry, error) {
	contextVals, err := c.promptContext(ctx, ownerID, projectID, kind, parentID)
	if err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, err
	}

	lines, err := c.suggestions.Request(ctx, kind, contextVals)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotConfigured) {
			c.logger.Warn("suggestion fetch failed",
				zap.String("kind", string(kind)),
				zap.String("parent_id", parentID.String()),
				zap.Error(err))
		}
		c.mu.Lock()
		e := c.entries[key]
		e.Suggestions = keep
		e.State = stateFor(keep)
		e.LastError = err.Error()
		snapshot := e.snapshot()
		c.mu.Unlock()
		return snapshot, nil
	}

	// Preexisting children with matching content start out selected.
	accepted, err := c.synthesis.ChildContents(ctx, ownerID, projectID, kind, parentID)
	if err != nil {
		accepted = nil
	}

	fresh := make([]*Suggestion, 0, len(lines))
	for _, line := range lines {
		_, selected := accepted[line]
		fresh = append(fresh, &Suggestion{ID: uuid.New(), Text: line, Selected: selected})
	}

	c.mu.Lock()
	e := c.entries[key]
	e.Suggestions = append(keep, fresh...)
	e.State = stateFor(e.Suggestions)
	e.LastError = ""
	snapshot := e.snapshot()
	c.mu.Unlock()
	return snapshot, nil
}

func stateFor(suggestions []*Suggestion) CacheState {
	if len(suggestions) == 0 {
		return StateLoadedEmpty
	}
	return StateLoaded
}

func (c *suggestionCache) Entry(kind prompts.Kind, parentID uuid.UUID) *CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey{kind: kind, parentID: parentID}]
	if !ok {
		return &CacheEntry{State: StateNotFetched}
	}
	return e.snapshot()
}

func (c *suggestionCache) SetSelected(kind prompts.Kind, parentID, suggestionID uuid.UUID, selected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey{kind: kind, parentID: parentID}]
	if !ok {
		return
	}
	for _, s := range e.Suggestions {
		if s.ID == suggestionID {
			s.Selected = selected
			return
		}
	}
}

// promptContext assembles the template values a kind needs from the
// current tree.
func (c *suggestionCache) promptContext(ctx context.Context, ownerID string, projectID uuid.UUID, kind prompts.Kind, parentID uuid.UUID) (map[string]string, error) {
	tree, err := c.synthesis.Tree(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case prompts.KindHarms:
		obs := tree.observation(parentID)
		if obs == nil {
			return nil, apperrors.ErrNotFound
		}
		return map[string]string{"observation": obs.Content}, nil
	case prompts.KindCriteria:
		harm := tree.harm(parentID)
		if harm == nil {
			return nil, apperrors.ErrNotFound
		}
		vals := map[string]string{"harm": harm.Content, "observation": ""}
		if obs := tree.ObservationForHarm(harm.ID); obs != nil {
			vals["observation"] = obs.Content
		}
		return vals, nil
	case prompts.KindStrategies:
		criterion := tree.criterion(parentID)
		if criterion == nil {
			return nil, apperrors.ErrNotFound
		}
		vals := map[string]string{"criterion": criterion.Content, "harm": ""}
		if harm := tree.harm(criterion.HarmID); harm != nil {
			vals["harm"] = harm.Content
		}
		return vals, nil
	}
	return nil, apperrors.ErrInvalidKind
}

// Visible returns the candidates not yet accepted. Accepted suggestions
// live on as entities in the tree, so the panel hides them.
func (e *CacheEntry) Visible() []*Suggestion {
	out := make([]*Suggestion, 0, len(e.Suggestions))
	for _, s := range e.Suggestions {
		if !s.Selected {
			out = append(out, s)
		}
	}
	return out
}

func (e *CacheEntry) snapshot() *CacheEntry {
	out := &CacheEntry{State: e.State, LastError: e.LastError}
	out.Suggestions = make([]*Suggestion, len(e.Suggestions))
	for i, s := range e.Suggestions {
		copied := *s
		out.Suggestions[i] = &copied
	}
	return out
}

var _ SuggestionCacheService = (*suggestionCache)(nil)
