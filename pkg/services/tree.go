package services

import (
	"github.com/google/uuid"

	"github.com/matthewebeebe/observations-to-insights/pkg/models"
)

// Tree is an in-memory snapshot of a project's synthesis chain:
// observations branch into harms, harms into criteria, criteria into
// strategies. Lookups are linear scans; collections are tens to low
// hundreds of nodes, so scans beat the bookkeeping of indexed maps.
type Tree struct {
	Project      *models.Project       `json:"project"`
	Observations []*models.Observation `json:"observations"`
	Harms        []*models.Harm        `json:"harms"`
	Criteria     []*models.Criterion   `json:"criteria"`
	Strategies   []*models.Strategy    `json:"strategies"`
}

// HarmsForObservation returns the harms whose observation-id set contains
// the given observation, in creation order.
func (t *Tree) HarmsForObservation(observationID uuid.UUID) []*models.Harm {
	var out []*models.Harm
	for _, h := range t.Harms {
		if h.DerivedFrom(observationID) {
			out = append(out, h)
		}
	}
	return out
}

// CriteriaForHarm returns the criteria referencing the harm, in creation
// order.
func (t *Tree) CriteriaForHarm(harmID uuid.UUID) []*models.Criterion {
	var out []*models.Criterion
	for _, c := range t.Criteria {
		if c.HarmID == harmID {
			out = append(out, c)
		}
	}
	return out
}

// StrategiesForCriterion returns the strategies referencing the criterion,
// in creation order.
func (t *Tree) StrategiesForCriterion(criterionID uuid.UUID) []*models.Strategy {
	var out []*models.Strategy
	for _, s := range t.Strategies {
		if s.CriterionID == criterionID {
			out = append(out, s)
		}
	}
	return out
}

// ObservationForHarm returns the first observation the harm still validly
// references. A harm whose references have all been deleted is orphaned,
// not an error: it returns nil and the harm is simply unreachable from the
// observation views.
func (t *Tree) ObservationForHarm(harmID uuid.UUID) *models.Observation {
	var harm *models.Harm
	for _, h := range t.Harms {
		if h.ID == harmID {
			harm = h
			break
		}
	}
	if harm == nil {
		return nil
	}
	for _, refID := range harm.ObservationIDs {
		for _, o := range t.Observations {
			if o.ID == refID {
				return o
			}
		}
	}
	return nil
}

func (t *Tree) observation(id uuid.UUID) *models.Observation {
	for _, o := range t.Observations {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (t *Tree) harm(id uuid.UUID) *models.Harm {
	for _, h := range t.Harms {
		if h.ID == id {
			return h
		}
	}
	return nil
}

func (t *Tree) criterion(id uuid.UUID) *models.Criterion {
	for _, c := range t.Criteria {
		if c.ID == id {
			return c
		}
	}
	return nil
}
