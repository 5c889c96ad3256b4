package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
)

// CoachingService reviews in-progress observation drafts. Every revision
// restarts a debounce window; only the text that survives a quiet period is
// sent for review, and an in-flight review is abandoned the moment newer
// text arrives.
type CoachingService interface {
	// TextChanged registers the latest draft for the key. Drafts below the
	// minimum length clear any shown feedback without triggering a review.
	TextChanged(ownerID string, key uuid.UUID, text string)

	// Feedback returns the current coaching note for the owner's key and
	// whether a review is still pending. An empty note means the draft
	// passed.
	Feedback(ownerID string, key uuid.UUID) (string, bool)

	// Forget drops the owner's session for the key, cancelling any pending
	// review. Called when the draft is submitted or abandoned.
	Forget(ownerID string, key uuid.UUID)
}

// coachingKey scopes sessions per owner. Keys are minted by clients, so two
// users reusing the same UUID must not share a session.
type coachingKey struct {
	ownerID string
	key     uuid.UUID
}

type coachingSession struct {
	// seq increments on every revision; a review result is applied only if
	// its seq still matches, which discards responses that raced a newer
	// keystroke.
	seq      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	feedback string
	pending  bool
}

type coachingService struct {
	suggestions SuggestionService
	debounce    time.Duration
	minLength   int
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[coachingKey]*coachingSession
}

// NewCoachingService creates the coaching loop with the given debounce
// window and minimum draft length.
func NewCoachingService(suggestions SuggestionService, debounce time.Duration, minLength int, logger *zap.Logger) CoachingService {
	return &coachingService{
		suggestions: suggestions,
		debounce:    debounce,
		minLength:   minLength,
		logger:      logger.Named("coaching"),
		sessions:    make(map[coachingKey]*coachingSession),
	}
}

func (c *coachingService) TextChanged(ownerID string, key uuid.UUID, text string) {
	text = strings.TrimSpace(text)
	sk := coachingKey{ownerID: ownerID, key: key}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sk]
	if !ok {
		sess = &coachingSession{}
		c.sessions[sk] = sess
	}

	sess.seq++
	seq := sess.seq
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}

	if len(text) < c.minLength {
		sess.feedback = ""
		sess.pending = false
		return
	}

	sess.pending = true
	sess.timer = time.AfterFunc(c.debounce, func() {
		c.review(sk, seq, text)
	})
}

func (c *coachingService) review(sk coachingKey, seq uint64, text string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	sess, ok := c.sessions[sk]
	if !ok || sess.seq != seq {
		c.mu.Unlock()
		return
	}
	sess.cancel = cancel
	c.mu.Unlock()

	resp, err := c.suggestions.RequestText(ctx, prompts.KindCoaching, map[string]string{"text": text})

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok = c.sessions[sk]
	if !ok || sess.seq != seq {
		// A newer revision arrived while this review ran; its result is
		// stale and must never be shown.
		return
	}
	sess.pending = false
	sess.cancel = nil

	switch {
	case err != nil:
		// Coaching is advisory; failures never surface to the draft.
		if ctx.Err() == nil {
			c.logger.Debug("coaching review failed", zap.Error(err))
		}
		sess.feedback = ""
	case strings.EqualFold(strings.TrimSpace(resp), prompts.CoachingOKSentinel):
		sess.feedback = ""
	default:
		sess.feedback = strings.TrimSpace(resp)
	}
}

func (c *coachingService) Feedback(ownerID string, key uuid.UUID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[coachingKey{ownerID: ownerID, key: key}]
	if !ok {
		return "", false
	}
	return sess.feedback, sess.pending
}

func (c *coachingService) Forget(ownerID string, key uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sk := coachingKey{ownerID: ownerID, key: key}
	sess, ok := c.sessions[sk]
	if !ok {
		return
	}
	if sess.timer != nil {
		sess.timer.Stop()
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	delete(c.sessions, sk)
}

var _ CoachingService = (*coachingService)(nil)
