package catalog

import "github.com/rivermist/shopflow/pkg/schema"

// Sequencer builds the concrete step sequence for a run from an intent and a
// loosely-structured plan. It never fails: the result is the plan-mapped
// subsequence when any phrase resolves, else the full catalog sequence for
// the intent, else a minimal search-and-recommend fallback.
type Sequencer struct {
	catalog *Catalog
}

// NewSequencer creates a Sequencer over the given catalog.
func NewSequencer(c *Catalog) *Sequencer {
	return &Sequencer{catalog: c}
}

// Build resolves the step sequence for the intent and plan.
func (s *Sequencer) Build(intent string, plan schema.Plan) schema.Workflow {
	workflow := s.catalog.Sequence(intent)
	if mapped := s.mapPlanSteps(plan, workflow); len(mapped) > 0 {
		return mapped
	}
	if len(workflow) > 0 {
		return workflow
	}
	return defaultWorkflow()
}

// mapPlanSteps maps plan phrases onto steps of the intent's catalog sequence.
// Phrases that match no hint, or resolve to a step outside this intent's
// sequence, are skipped. Order follows the plan; duplicate step names are
// suppressed with the first occurrence winning.
func (s *Sequencer) mapPlanSteps(plan schema.Plan, workflow schema.Workflow) schema.Workflow {
	if len(plan.Steps) == 0 {
		return nil
	}
	var mapped schema.Workflow
	seen := make(map[string]bool)
	for _, phrase := range plan.Phrases() {
		name := matchStepName(phrase)
		if name == "" || seen[name] {
			continue
		}
		for _, step := range workflow {
			if step.Name == name {
				mapped = append(mapped, step)
				seen[name] = true
				break
			}
		}
	}
	return mapped
}

func defaultWorkflow() schema.Workflow {
	return schema.Workflow{
		{Name: "PRODUCT_SEARCH", Description: "Search catalog.", RequiredTools: []string{"catalog_search_tool"}},
		{Name: "RECOMMEND", Description: "Recommend the best options."},
	}
}
