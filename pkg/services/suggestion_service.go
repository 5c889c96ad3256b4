// Package services implements the worksheet's domain operations on top of
// the repositories, prompt registry, and completion client.
package services

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/apperrors"
	"github.com/matthewebeebe/observations-to-insights/pkg/llm"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
)

// SuggestionService formats a templated prompt, invokes the completion
// service, and post-processes the output. It performs no retries; a failure
// surfaces as a single typed error to the caller.
type SuggestionService interface {
	// Request returns an ordered list of candidate strings for the kind.
	// Duplicates within a single call are removed; duplicates across
	// repeated calls are the caller's concern.
	Request(ctx context.Context, kind prompts.Kind, contextVals map[string]string) ([]string, error)

	// RequestText returns the raw trimmed completion for kinds that expect
	// a single text answer (coaching, insight titles).
	RequestText(ctx context.Context, kind prompts.Kind, contextVals map[string]string) (string, error)
}

type suggestionService struct {
	registry    *prompts.Registry
	client      llm.Client
	temperature float64
	logger      *zap.Logger
}

// NewSuggestionService creates a suggestion service. A nil client puts the
// service in unconfigured mode: every request fails with ErrNotConfigured,
// which callers degrade to an empty result.
func NewSuggestionService(registry *prompts.Registry, client llm.Client, temperature float64, logger *zap.Logger) SuggestionService {
	return &suggestionService{
		registry:    registry,
		client:      client,
		temperature: temperature,
		logger:      logger.Named("suggestions"),
	}
}

func (s *suggestionService) RequestText(ctx context.Context, kind prompts.Kind, contextVals map[string]string) (string, error) {
	if s.client == nil {
		return "", apperrors.ErrNotConfigured
	}

	prompt, err := s.registry.Fill(kind, contextVals)
	if err != nil {
		return "", err
	}

	resp, err := s.client.GenerateResponse(ctx, prompt, prompts.SystemMessage, s.temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (s *suggestionService) Request(ctx context.Context, kind prompts.Kind, contextVals map[string]string) ([]string, error) {
	resp, err := s.RequestText(ctx, kind, contextVals)
	if err != nil {
		return nil, err
	}

	lines := ParseSuggestionLines(resp)
	s.logger.Debug("parsed suggestions",
		zap.String("kind", string(kind)),
		zap.Int("count", len(lines)))
	return lines, nil
}

// leadingMarkup matches bullet or numbering prefixes like "- ", "* ",
// "• ", "3. " or "3) ".
var leadingMarkup = regexp.MustCompile(`^\s*(?:[-*•‣]|\d+[.)])\s*`)

// ParseSuggestionLines splits a raw completion into a clean ordered list:
// one candidate per line, whitespace trimmed, empty lines dropped, leading
// bullet/numbering markup stripped, duplicates within the list removed.
func ParseSuggestionLines(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = leadingMarkup.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
