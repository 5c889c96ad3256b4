package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/llm"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
)

// promptRecorder is a goroutine-safe capture of completion requests.
type promptRecorder struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (r *promptRecorder) generate(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()
	return r.reply, nil
}

func (r *promptRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prompts...)
}

func newTestCoaching(t *testing.T, reply string, debounce time.Duration) (CoachingService, *promptRecorder) {
	t.Helper()

	rec := &promptRecorder{reply: reply}
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = rec.generate
	suggestions := NewSuggestionService(prompts.NewRegistry(), mock, 0.7, zap.NewNop())
	return NewCoachingService(suggestions, debounce, 10, zap.NewNop()), rec
}

func TestCoachingDebouncesToLatestText(t *testing.T) {
	svc, rec := newTestCoaching(t, "Consider noting where this happened.", 30*time.Millisecond)
	key := uuid.New()

	// Rapid revisions: only the final text should be reviewed.
	svc.TextChanged(testOwner, key, "the kitchen feels cramped")
	svc.TextChanged(testOwner, key, "the kitchen feels cramped when two")
	svc.TextChanged(testOwner, key, "the kitchen feels cramped when two people cook")

	require.Eventually(t, func() bool {
		fb, pending := svc.Feedback(testOwner, key)
		return !pending && fb == "Consider noting where this happened."
	}, 2*time.Second, 5*time.Millisecond)

	calls := rec.calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0], "the kitchen feels cramped when two people cook")
}

func TestCoachingOKSentinelMeansNoFeedback(t *testing.T) {
	svc, rec := newTestCoaching(t, "  OK \n", 5*time.Millisecond)
	key := uuid.New()

	svc.TextChanged(testOwner, key, "only one outlet near the stove, shared by three appliances")

	require.Eventually(t, func() bool {
		_, pending := svc.Feedback(testOwner, key)
		return !pending && len(rec.calls()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	fb, _ := svc.Feedback(testOwner, key)
	require.Empty(t, fb)
}

func TestCoachingSkipsShortDrafts(t *testing.T) {
	svc, rec := newTestCoaching(t, "irrelevant", 5*time.Millisecond)
	key := uuid.New()

	svc.TextChanged(testOwner, key, "short")

	time.Sleep(50 * time.Millisecond)
	fb, pending := svc.Feedback(testOwner, key)
	require.Empty(t, fb)
	require.False(t, pending)
	require.Empty(t, rec.calls())
}

func TestShortDraftClearsPriorFeedback(t *testing.T) {
	svc, _ := newTestCoaching(t, "Add more specifics.", 5*time.Millisecond)
	key := uuid.New()

	svc.TextChanged(testOwner, key, "a draft long enough to be reviewed")
	require.Eventually(t, func() bool {
		fb, pending := svc.Feedback(testOwner, key)
		return !pending && fb == "Add more specifics."
	}, 2*time.Second, 5*time.Millisecond)

	// Deleting the draft down below the threshold hides the note.
	svc.TextChanged(testOwner, key, "a")
	fb, pending := svc.Feedback(testOwner, key)
	require.Empty(t, fb)
	require.False(t, pending)
}

func TestStaleReviewNeverShown(t *testing.T) {
	rec := &promptRecorder{}
	mock := llm.NewMockClient()
	release := make(chan struct{})
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		rec.generate(ctx, prompt, systemMessage, temperature)
		if strings.Contains(prompt, "first version") {
			<-release // hold the first review until the second finishes
			return "stale feedback", nil
		}
		return "fresh feedback", nil
	}
	suggestions := NewSuggestionService(prompts.NewRegistry(), mock, 0.7, zap.NewNop())
	svc := NewCoachingService(suggestions, time.Millisecond, 10, zap.NewNop())
	key := uuid.New()

	svc.TextChanged(testOwner, key, "first version of the observation")
	require.Eventually(t, func() bool {
		return len(rec.calls()) == 1
	}, 2*time.Second, time.Millisecond)

	// The first review is still in flight when the text changes again.
	svc.TextChanged(testOwner, key, "second version of the observation")
	require.Eventually(t, func() bool {
		fb, pending := svc.Feedback(testOwner, key)
		return !pending && fb == "fresh feedback"
	}, 2*time.Second, time.Millisecond)

	close(release)
	time.Sleep(50 * time.Millisecond)
	fb, _ := svc.Feedback(testOwner, key)
	require.Equal(t, "fresh feedback", fb)
}

func TestCoachingSessionsScopedPerOwner(t *testing.T) {
	svc, _ := newTestCoaching(t, "Add more specifics.", 5*time.Millisecond)
	key := uuid.New()

	svc.TextChanged("alice", key, "a draft long enough to be reviewed")
	require.Eventually(t, func() bool {
		fb, pending := svc.Feedback("alice", key)
		return !pending && fb == "Add more specifics."
	}, 2*time.Second, 5*time.Millisecond)

	// Another user reusing the same key neither sees alice's note nor
	// clears it with a short draft of their own.
	fb, pending := svc.Feedback("bob", key)
	require.Empty(t, fb)
	require.False(t, pending)

	svc.TextChanged("bob", key, "a")
	fb, _ = svc.Feedback("alice", key)
	require.Equal(t, "Add more specifics.", fb)

	svc.Forget("bob", key)
	fb, _ = svc.Feedback("alice", key)
	require.Equal(t, "Add more specifics.", fb)
}

func TestForgetCancelsSession(t *testing.T) {
	svc, _ := newTestCoaching(t, "anything", 20*time.Millisecond)
	key := uuid.New()

	svc.TextChanged(testOwner, key, "a draft long enough to be reviewed")
	svc.Forget(testOwner, key)

	time.Sleep(60 * time.Millisecond)
	fb, pending := svc.Feedback(testOwner, key)
	require.Empty(t, fb)
	require.False(t, pending)
}
