package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/config"
	"github.com/matthewebeebe/observations-to-insights/pkg/llm"
	"github.com/matthewebeebe/observations-to-insights/pkg/models"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
	"github.com/matthewebeebe/observations-to-insights/pkg/repositories"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// newTestMux wires the full handler stack against the in-memory store with
// auth verification disabled, mirroring main.go's assembly.
func newTestMux(t *testing.T, mock *llm.MockClient) *http.ServeMux {
	t.Helper()

	logger := zap.NewNop()
	registry := prompts.NewRegistry()
	var client llm.Client
	if mock != nil {
		client = mock
	}

	store := repositories.NewMemoryStore()
	suggestions := services.NewSuggestionService(registry, client, 0.7, logger)
	synthesis := services.NewSynthesisService(store, suggestions, logger)
	cache := services.NewSuggestionCache(synthesis, suggestions, logger)
	coaching := services.NewCoachingService(suggestions, 0, 10, logger)
	export := services.NewExportService(synthesis)

	authMiddleware := auth.NewMiddleware(config.AuthConfig{EnableVerification: false}, nil, logger)

	mux := http.NewServeMux()
	NewHealthHandler("test", store.Mode, logger).RegisterRoutes(mux)
	NewProjectsHandler(synthesis, export, logger).RegisterRoutes(mux, authMiddleware)
	NewObservationsHandler(synthesis, logger).RegisterRoutes(mux, authMiddleware)
	NewEntitiesHandler(synthesis, logger).RegisterRoutes(mux, authMiddleware)
	NewSuggestionsHandler(cache, synthesis, logger).RegisterRoutes(mux, authMiddleware)
	NewCoachingHandler(coaching, logger).RegisterRoutes(mux, authMiddleware)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "local", body["store_mode"])
}

func TestProjectLifecycle(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decodeJSON[models.Project](t, rec)
	require.Equal(t, "Kitchen Study", project.Name)

	rec = doJSON(t, mux, http.MethodGet, "/api/projects", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[map[string][]models.Project](t, rec)
	require.Len(t, list["projects"], 1)

	rec = doJSON(t, mux, http.MethodPatch, "/api/projects/"+project.ID.String(), "alice", map[string]string{"name": "Kitchen Redesign"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Kitchen Redesign", decodeJSON[models.Project](t, rec).Name)

	rec = doJSON(t, mux, http.MethodPost, "/api/projects/"+project.ID.String()+"/archive", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decodeJSON[models.Project](t, rec).Archived)

	rec = doJSON(t, mux, http.MethodDelete, "/api/projects/"+project.ID.String(), "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/projects/"+project.ID.String(), "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectOwnershipIsolation(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Private"})
	project := decodeJSON[models.Project](t, rec)

	rec = doJSON(t, mux, http.MethodGet, "/api/projects/"+project.ID.String(), "bob", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Bob's listing does not include Alice's project.
	rec = doJSON(t, mux, http.MethodGet, "/api/projects", "bob", nil)
	list := decodeJSON[map[string][]models.Project](t, rec)
	require.Empty(t, list["projects"])
}

func TestCreateObservationEchoesContentOnFailure(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	project := decodeJSON[models.Project](t, rec)

	// Empty trimmed content is rejected without creating anything; the
	// submitted text comes back for the client to restore.
	rec = doJSON(t, mux, http.MethodPost, "/api/projects/"+project.ID.String()+"/observations", "alice",
		map[string]string{"content": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "empty_content", body["error"])
	require.Equal(t, "   ", body["submitted_content"])

	rec = doJSON(t, mux, http.MethodGet, "/api/projects/"+project.ID.String()+"/tree", "alice", nil)
	tree := decodeJSON[services.Tree](t, rec)
	require.Empty(t, tree.Observations)
}

func TestObservationMoveEndpoint(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	project := decodeJSON[models.Project](t, rec)
	base := "/api/projects/" + project.ID.String()

	var obs []models.Observation
	for _, c := range []string{"a", "b", "c"} {
		rec = doJSON(t, mux, http.MethodPost, base+"/observations", "alice", map[string]string{"content": c})
		require.Equal(t, http.StatusCreated, rec.Code)
		obs = append(obs, decodeJSON[models.Observation](t, rec))
	}

	rec = doJSON(t, mux, http.MethodPost, base+"/observations/"+obs[2].ID.String()+"/move", "alice",
		map[string]int{"target_index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	moved := decodeJSON[map[string][]models.Observation](t, rec)
	require.Equal(t, "c", moved["observations"][0].Content)

	rec = doJSON(t, mux, http.MethodGet, base+"/tree", "alice", nil)
	tree := decodeJSON[services.Tree](t, rec)
	require.Equal(t, "c", tree.Observations[0].Content)
}

func TestPasteAndBranchEndpoints(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	project := decodeJSON[models.Project](t, rec)
	base := "/api/projects/" + project.ID.String()

	rec = doJSON(t, mux, http.MethodPost, base+"/observations/paste", "alice",
		map[string]string{"text": "first\nsecond\n\nthird"})
	require.Equal(t, http.StatusCreated, rec.Code)
	pasted := decodeJSON[map[string][]models.Observation](t, rec)
	require.Len(t, pasted["observations"], 3)

	src := pasted["observations"][0]
	rec = doJSON(t, mux, http.MethodPost, base+"/observations/"+src.ID.String()+"/branch", "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	branch := decodeJSON[models.Observation](t, rec)
	require.Equal(t, "first", branch.Content)

	rec = doJSON(t, mux, http.MethodGet, base+"/tree", "alice", nil)
	tree := decodeJSON[services.Tree](t, rec)
	require.Len(t, tree.Observations, 4)
	require.Equal(t, branch.ID, tree.Observations[1].ID)
}

func TestFullChainAndMatrixExport(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	project := decodeJSON[models.Project](t, rec)
	base := "/api/projects/" + project.ID.String()

	rec = doJSON(t, mux, http.MethodPost, base+"/observations", "alice",
		map[string]string{"content": "User opened three cabinets while cooking"})
	obs := decodeJSON[models.Observation](t, rec)

	rec = doJSON(t, mux, http.MethodPost, base+"/observations/"+obs.ID.String()+"/harms", "alice",
		map[string]string{"content": "Time wasted searching for ingredients"})
	require.Equal(t, http.StatusCreated, rec.Code)
	harm := decodeJSON[models.Harm](t, rec)

	rec = doJSON(t, mux, http.MethodPost, base+"/harms/"+harm.ID.String()+"/criteria", "alice",
		map[string]string{"content": "The solution should make ingredient location obvious"})
	require.Equal(t, http.StatusCreated, rec.Code)
	criterion := decodeJSON[models.Criterion](t, rec)

	rec = doJSON(t, mux, http.MethodPost, base+"/criteria/"+criterion.ID.String()+"/strategies", "alice",
		map[string]string{"content": "label storage by frequency of use"})
	require.Equal(t, http.StatusCreated, rec.Code)
	strategy := decodeJSON[models.Strategy](t, rec)
	require.Equal(t, "HMW label storage by frequency of use", strategy.Content)

	rec = doJSON(t, mux, http.MethodGet, base+"/export/matrix", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(),
		"User opened three cabinets while cooking\tTime wasted searching for ingredients\tThe solution should make ingredient location obvious\tHMW label storage by frequency of use")

	rec = doJSON(t, mux, http.MethodGet, base+"/export/outline", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# Kitchen Study")
}

// suggestionPanel mirrors the panel wire shape for decoding.
type suggestionPanel struct {
	State       services.CacheState   `json:"state"`
	Suggestions []services.Suggestion `json:"suggestions"`
	All         []services.Suggestion `json:"all"`
}

func TestSuggestionPanelFlow(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "- appliances compete for power\n- cords cross the burner", nil
	}
	mux := newTestMux(t, mock)

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	project := decodeJSON[models.Project](t, rec)
	base := "/api/projects/" + project.ID.String()

	rec = doJSON(t, mux, http.MethodPost, base+"/observations", "alice",
		map[string]string{"content": "only one outlet near the stove"})
	obs := decodeJSON[models.Observation](t, rec)

	panelPath := fmt.Sprintf("%s/suggestions/harms/%s", base, obs.ID)
	rec = doJSON(t, mux, http.MethodGet, panelPath, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	panel := decodeJSON[suggestionPanel](t, rec)
	require.Equal(t, services.StateLoaded, panel.State)
	require.Len(t, panel.Suggestions, 2)
	require.Len(t, panel.All, 2)
	require.Equal(t, 1, mock.GenerateResponseCalls)

	// Accept the first candidate.
	rec = doJSON(t, mux, http.MethodPost, panelPath+"/toggle", "alice", map[string]any{
		"suggestion_id": panel.Suggestions[0].ID,
		"content":       panel.Suggestions[0].Text,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decodeJSON[map[string]bool](t, rec)["selected"])

	rec = doJSON(t, mux, http.MethodGet, base+"/tree", "alice", nil)
	tree := decodeJSON[services.Tree](t, rec)
	require.Len(t, tree.Harms, 1)
	require.Equal(t, "appliances compete for power", tree.Harms[0].Content)

	// Reopening the panel hides the accepted candidate without a refetch;
	// the full list keeps it behind the selected flag.
	rec = doJSON(t, mux, http.MethodGet, panelPath, "alice", nil)
	panel = decodeJSON[suggestionPanel](t, rec)
	require.Len(t, panel.Suggestions, 1)
	require.Equal(t, "cords cross the burner", panel.Suggestions[0].Text)
	require.Len(t, panel.All, 2)
	require.True(t, panel.All[0].Selected)
	require.False(t, panel.All[1].Selected)
	require.Equal(t, 1, mock.GenerateResponseCalls)

	// Toggle off removes the harm and the candidate reappears.
	rec = doJSON(t, mux, http.MethodPost, panelPath+"/toggle", "alice", map[string]any{
		"suggestion_id": panel.All[0].ID,
		"content":       panel.All[0].Text,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decodeJSON[map[string]bool](t, rec)["selected"])

	rec = doJSON(t, mux, http.MethodGet, base+"/tree", "alice", nil)
	tree = decodeJSON[services.Tree](t, rec)
	require.Empty(t, tree.Harms)

	rec = doJSON(t, mux, http.MethodGet, panelPath, "alice", nil)
	panel = decodeJSON[suggestionPanel](t, rec)
	require.Len(t, panel.Suggestions, 2)
}

func TestSuggestionUnknownKindRejected(t *testing.T) {
	mux := newTestMux(t, llm.NewMockClient())

	rec := doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "Kitchen Study"})
	project := decodeJSON[models.Project](t, rec)

	path := fmt.Sprintf("/api/projects/%s/suggestions/ideas/%s", project.ID, project.ID)
	rec = doJSON(t, mux, http.MethodGet, path, "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCoachingEndpoints(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "Consider noting where this happened.", nil
	}
	mux := newTestMux(t, mock)

	key := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	rec := doJSON(t, mux, http.MethodPost, "/api/coaching/"+key+"/text", "alice",
		map[string]string{"text": "the kitchen feels cramped when two people cook"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := doJSON(t, mux, http.MethodGet, "/api/coaching/"+key, "alice", nil)
		body := decodeJSON[map[string]any](t, rec)
		return body["pending"] == false && body["feedback"] == "Consider noting where this happened."
	}, 2*time.Second, 10*time.Millisecond)

	rec = doJSON(t, mux, http.MethodDelete, "/api/coaching/"+key, "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/coaching/"+key, "alice", nil)
	body := decodeJSON[map[string]any](t, rec)
	require.Equal(t, "", body["feedback"])
}

func TestInvalidIDsRejected(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/projects/not-a-uuid", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/projects", "alice", map[string]string{"name": "P"})
	project := decodeJSON[models.Project](t, rec)

	rec = doJSON(t, mux, http.MethodDelete, "/api/projects/"+project.ID.String()+"/observations/nope", "alice", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
