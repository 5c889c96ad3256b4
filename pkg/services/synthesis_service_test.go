package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
	"github.com/matthewebeebe/observations-to-insights/pkg/llm"
	"github.com/matthewebeebe/observations-to-insights/pkg/models"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
	"github.com/matthewebeebe/observations-to-insights/pkg/repositories"
)

const testOwner = "user-1"

func newTestSynthesis(t *testing.T, mock *llm.MockClient) SynthesisService {
	t.Helper()

	registry := prompts.NewRegistry()
	var client llm.Client
	if mock != nil {
		client = mock
	}
	suggestions := NewSuggestionService(registry, client, 0.7, zap.NewNop())
	return NewSynthesisService(repositories.NewMemoryStore(), suggestions, zap.NewNop())
}

func createTestProject(t *testing.T, svc SynthesisService) *models.Project {
	t.Helper()

	p, err := svc.CreateProject(context.Background(), testOwner, "Kitchen Study")
	require.NoError(t, err)
	return p
}

func TestCreateProjectRejectsBlankName(t *testing.T) {
	svc := newTestSynthesis(t, nil)

	_, err := svc.CreateProject(context.Background(), testOwner, "   ")
	require.ErrorIs(t, err, apperrors.ErrEmptyContent)
}

func TestProjectOwnershipEnforced(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)

	_, err := svc.GetProject(context.Background(), "someone-else", p.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.GetProject(context.Background(), testOwner, uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddObservationTrimsAndRejectsBlank(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "  only one outlet near the stove  ")
	require.NoError(t, err)
	require.Equal(t, "only one outlet near the stove", obs.Content)

	_, err = svc.AddObservation(ctx, testOwner, p.ID, "   ")
	require.ErrorIs(t, err, apperrors.ErrEmptyContent)
}

func TestPasteObservationsSplitsAndSkipsBlankLines(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)

	created, err := svc.PasteObservations(context.Background(), testOwner, p.ID,
		"first note\n\n  second note  \n\t\nthird note\n")
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Equal(t, "second note", created[1].Content)

	tree, err := svc.Tree(context.Background(), testOwner, p.ID)
	require.NoError(t, err)
	require.Len(t, tree.Observations, 3)
}

func TestBranchObservationInsertsAfterSource(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, c := range []string{"a", "b", "c"} {
		obs, err := svc.AddObservation(ctx, testOwner, p.ID, c)
		require.NoError(t, err)
		ids = append(ids, obs.ID)
	}

	branch, err := svc.BranchObservation(ctx, testOwner, p.ID, ids[1])
	require.NoError(t, err)
	require.Equal(t, "b", branch.Content)

	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Len(t, tree.Observations, 4)
	// Branch sits immediately after its source.
	require.Equal(t, ids[1], tree.Observations[1].ID)
	require.Equal(t, branch.ID, tree.Observations[2].ID)
	require.Equal(t, ids[2], tree.Observations[3].ID)

	// A branch starts with no harms of its own.
	require.Empty(t, tree.HarmsForObservation(branch.ID))
}

func TestBranchObservationMissingSource(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)

	_, err := svc.BranchObservation(context.Background(), testOwner, p.ID, uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReorderObservations(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, c := range []string{"a", "b", "c"} {
		obs, err := svc.AddObservation(ctx, testOwner, p.ID, c)
		require.NoError(t, err)
		ids = append(ids, obs.ID)
	}

	reordered, err := svc.ReorderObservations(ctx, testOwner, p.ID, ids[2], 0)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{ids[2], ids[0], ids[1]}, observationIDs(reordered))

	// The new sequence is persisted, not just returned.
	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{ids[2], ids[0], ids[1]}, observationIDs(tree.Observations))
}

func observationIDs(obs []*models.Observation) []uuid.UUID {
	out := make([]uuid.UUID, len(obs))
	for i, o := range obs {
		out[i] = o.ID
	}
	return out
}

func TestAddStrategyAppliesHMWPrefixAndValidatesKind(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "cabinet handles snag clothing")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "torn pockets", nil)
	require.NoError(t, err)
	criterion, err := svc.AddCriterion(ctx, testOwner, p.ID, harm.ID, "the solution should remove protrusions", nil)
	require.NoError(t, err)

	strategy, err := svc.AddStrategy(ctx, testOwner, p.ID, criterion.ID, "recess the handles", models.StrategyAvoid, nil)
	require.NoError(t, err)
	require.Equal(t, "HMW recess the handles", strategy.Content)

	already, err := svc.AddStrategy(ctx, testOwner, p.ID, criterion.ID, "How might we pad the corners", models.StrategyMinimize, nil)
	require.NoError(t, err)
	require.Equal(t, "How might we pad the corners", already.Content)

	_, err = svc.AddStrategy(ctx, testOwner, p.ID, criterion.ID, "something", "sidestep", nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidKind)
}

func TestDeleteObservationLeavesHarmOrphaned(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "sharp counter corner")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "bruised hips", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteObservation(ctx, testOwner, p.ID, obs.ID))

	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Empty(t, tree.Observations)
	// The harm record survives but is unreachable from any observation.
	require.Len(t, tree.Harms, 1)
	require.Nil(t, tree.ObservationForHarm(harm.ID))
}

func TestDeleteProjectCascades(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "only one outlet")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "appliances compete", nil)
	require.NoError(t, err)
	criterion, err := svc.AddCriterion(ctx, testOwner, p.ID, harm.ID, "should power several appliances", nil)
	require.NoError(t, err)
	_, err = svc.AddStrategy(ctx, testOwner, p.ID, criterion.ID, "add a mounted power strip", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProject(ctx, testOwner, p.ID))

	_, err = svc.GetProject(ctx, testOwner, p.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestToggleArchived(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	p, err := svc.ToggleArchived(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.True(t, p.Archived)

	p, err = svc.ToggleArchived(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.False(t, p.Archived)
}

func TestToggleSuggestionOnThenOff(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "only one outlet near the stove")
	require.NoError(t, err)

	suggestionID := uuid.New()

	selected, err := svc.ToggleSuggestion(ctx, testOwner, p.ID, prompts.KindHarms, obs.ID, suggestionID, "appliances compete for power")
	require.NoError(t, err)
	require.True(t, selected)

	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Len(t, tree.Harms, 1)
	require.NotNil(t, tree.Harms[0].SourceSuggestionID)
	require.Equal(t, suggestionID, *tree.Harms[0].SourceSuggestionID)

	// Edit the accepted harm, then toggle off with the original suggestion
	// text: the provenance link still finds it.
	require.NoError(t, svc.UpdateHarm(ctx, testOwner, p.ID, tree.Harms[0].ID, "appliances fight over the single outlet"))

	selected, err = svc.ToggleSuggestion(ctx, testOwner, p.ID, prompts.KindHarms, obs.ID, suggestionID, "appliances compete for power")
	require.NoError(t, err)
	require.False(t, selected)

	tree, err = svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Empty(t, tree.Harms)
}

func TestToggleSuggestionMatchesManualEntryByContent(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "only one outlet near the stove")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "appliances compete for power", nil)
	require.NoError(t, err)

	// A suggestion with identical text toggles the manual entry off.
	selected, err := svc.ToggleSuggestion(ctx, testOwner, p.ID, prompts.KindHarms, obs.ID, uuid.New(), "appliances compete for power")
	require.NoError(t, err)
	require.False(t, selected)

	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Empty(t, tree.Harms)
	_ = harm
}

func TestToggleStrategySuggestionMatchesPrefixedContent(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "obs")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "harm", nil)
	require.NoError(t, err)
	criterion, err := svc.AddCriterion(ctx, testOwner, p.ID, harm.ID, "criterion", nil)
	require.NoError(t, err)

	suggestionID := uuid.New()
	// The raw suggestion lacks the prefix; the stored strategy carries it.
	selected, err := svc.ToggleSuggestion(ctx, testOwner, p.ID, prompts.KindStrategies, criterion.ID, suggestionID, "hide the outlet behind a panel")
	require.NoError(t, err)
	require.True(t, selected)

	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Len(t, tree.Strategies, 1)
	require.Equal(t, "HMW hide the outlet behind a panel", tree.Strategies[0].Content)

	selected, err = svc.ToggleSuggestion(ctx, testOwner, p.ID, prompts.KindStrategies, criterion.ID, suggestionID, "hide the outlet behind a panel")
	require.NoError(t, err)
	require.False(t, selected)
}

func TestChildContents(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "obs")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "first harm", nil)
	require.NoError(t, err)
	_, err = svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "second harm", nil)
	require.NoError(t, err)

	contents, err := svc.ChildContents(ctx, testOwner, p.ID, prompts.KindHarms, obs.ID)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	require.Equal(t, harm.ID, contents["first harm"])
}

func TestInsightTitleGeneratedOnFirstCriterion(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "Outlet Scarcity\n", nil
	}
	svc := newTestSynthesis(t, mock)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "only one outlet near the stove")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "appliances compete", nil)
	require.NoError(t, err)

	_, err = svc.AddCriterion(ctx, testOwner, p.ID, harm.ID, "should power several appliances", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		tree, err := svc.Tree(ctx, testOwner, p.ID)
		if err != nil {
			return false
		}
		o := tree.Observations[0]
		return o.Title == "Outlet Scarcity"
	}, 2*time.Second, 10*time.Millisecond)
	_ = obs
}

func TestInsightTitleSkippedForSecondHarm(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "Generated Title", nil
	}
	svc := newTestSynthesis(t, mock)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "only one outlet")
	require.NoError(t, err)
	first, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "first harm", nil)
	require.NoError(t, err)
	second, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "second harm", nil)
	require.NoError(t, err)
	_ = first

	// A criterion under the second harm must not trigger a title.
	_, err = svc.AddCriterion(ctx, testOwner, p.ID, second.ID, "a criterion", nil)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Empty(t, tree.Observations[0].Title)
	require.Zero(t, mock.GenerateResponseCalls)
}

func TestUpdateStrategyNormalizesContent(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)
	ctx := context.Background()

	obs, err := svc.AddObservation(ctx, testOwner, p.ID, "obs")
	require.NoError(t, err)
	harm, err := svc.AddHarm(ctx, testOwner, p.ID, obs.ID, "harm", nil)
	require.NoError(t, err)
	criterion, err := svc.AddCriterion(ctx, testOwner, p.ID, harm.ID, "criterion", nil)
	require.NoError(t, err)
	strategy, err := svc.AddStrategy(ctx, testOwner, p.ID, criterion.ID, "first draft", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStrategy(ctx, testOwner, p.ID, strategy.ID, "second draft", models.StrategyConfront))

	tree, err := svc.Tree(ctx, testOwner, p.ID)
	require.NoError(t, err)
	require.Equal(t, "HMW second draft", tree.Strategies[0].Content)
	require.Equal(t, models.StrategyConfront, tree.Strategies[0].Kind)
}

func TestRenameProject(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	p := createTestProject(t, svc)

	renamed, err := svc.RenameProject(context.Background(), testOwner, p.ID, "  Kitchen Redesign  ")
	require.NoError(t, err)
	require.Equal(t, "Kitchen Redesign", renamed.Name)

	_, err = svc.RenameProject(context.Background(), testOwner, p.ID, " ")
	require.ErrorIs(t, err, apperrors.ErrEmptyContent)
}

func TestCrossProjectEntityAccessDenied(t *testing.T) {
	svc := newTestSynthesis(t, nil)
	ctx := context.Background()

	p1 := createTestProject(t, svc)
	p2, err := svc.CreateProject(ctx, testOwner, "Other Project")
	require.NoError(t, err)

	obs, err := svc.AddObservation(ctx, testOwner, p1.ID, "in project one")
	require.NoError(t, err)

	// Entities resolve only through their own project.
	err = svc.UpdateObservation(ctx, testOwner, p2.ID, obs.ID, strings.Repeat("x", 3))
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
