package schema

// ValidateWorkflow checks structural invariants on a workflow: at least one
// step, non-empty unique step names, and non-empty required tool and input
// field identifiers.
func ValidateWorkflow(wf Workflow) error {
	if len(wf) == 0 {
		return NewError(ErrCodeValidation, "workflow has no steps")
	}
	seen := make(map[string]bool, len(wf))
	for i, step := range wf {
		if step.Name == "" {
			return NewErrorf(ErrCodeValidation, "step %d has no name", i)
		}
		if seen[step.Name] {
			return NewErrorf(ErrCodeValidation, "duplicate step name %q", step.Name)
		}
		seen[step.Name] = true
		for _, tool := range step.RequiredTools {
			if tool == "" {
				return NewErrorf(ErrCodeValidation, "step %q has an empty required tool", step.Name).WithStep(step.Name)
			}
		}
		for _, field := range step.InputFields {
			if field == "" {
				return NewErrorf(ErrCodeValidation, "step %q has an empty input field", step.Name).WithStep(step.Name)
			}
		}
	}
	return nil
}
