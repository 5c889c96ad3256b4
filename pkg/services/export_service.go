package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ExportService renders a project tree into clipboard-ready text.
type ExportService interface {
	// Outline renders the whole tree as a flattened Markdown outline.
	Outline(ctx context.Context, ownerID string, projectID uuid.UUID) (string, error)

	// Matrix renders a tab-separated table with one row per complete
	// observation→harm→criterion→strategy path. Ancestor text repeats when
	// an ancestor has several children; a branch that terminates early
	// still emits one row with blank trailing columns.
	Matrix(ctx context.Context, ownerID string, projectID uuid.UUID) (string, error)
}

type exportService struct {
	synthesis SynthesisService
}

// NewExportService creates the export renderer.
func NewExportService(synthesis SynthesisService) ExportService {
	return &exportService{synthesis: synthesis}
}

func (s *exportService) Outline(ctx context.Context, ownerID string, projectID uuid.UUID) (string, error) {
	tree, err := s.synthesis.Tree(ctx, ownerID, projectID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", tree.Project.Name)

	for _, obs := range tree.Observations {
		b.WriteString("\n")
		if obs.Title != "" {
			fmt.Fprintf(&b, "- **%s**: %s\n", obs.Title, obs.Content)
		} else {
			fmt.Fprintf(&b, "- %s\n", obs.Content)
		}
		for _, harm := range tree.HarmsForObservation(obs.ID) {
			fmt.Fprintf(&b, "  - Harm: %s\n", harm.Content)
			for _, criterion := range tree.CriteriaForHarm(harm.ID) {
				fmt.Fprintf(&b, "    - Criterion: %s\n", criterion.Content)
				for _, strategy := range tree.StrategiesForCriterion(criterion.ID) {
					fmt.Fprintf(&b, "      - Strategy: %s\n", strategy.Content)
				}
			}
		}
	}
	return b.String(), nil
}

func (s *exportService) Matrix(ctx context.Context, ownerID string, projectID uuid.UUID) (string, error) {
	tree, err := s.synthesis.Tree(ctx, ownerID, projectID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Observation\tHarm\tCriterion\tStrategy\n")

	writeRow := func(cols ...string) {
		b.WriteString(strings.Join(cols, "\t"))
		b.WriteString("\n")
	}

	for _, obs := range tree.Observations {
		harms := tree.HarmsForObservation(obs.ID)
		if len(harms) == 0 {
			writeRow(obs.Content, "", "", "")
			continue
		}
		for _, harm := range harms {
			criteria := tree.CriteriaForHarm(harm.ID)
			if len(criteria) == 0 {
				writeRow(obs.Content, harm.Content, "", "")
				continue
			}
			for _, criterion := range criteria {
				strategies := tree.StrategiesForCriterion(criterion.ID)
				if len(strategies) == 0 {
					writeRow(obs.Content, harm.Content, criterion.Content, "")
					continue
				}
				for _, strategy := range strategies {
					writeRow(obs.Content, harm.Content, criterion.Content, strategy.Content)
				}
			}
		}
	}
	return b.String(), nil
}

var _ ExportService = (*exportService)(nil)
