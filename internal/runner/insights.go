package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rivermist/shopflow/internal/executor"
	"github.com/rivermist/shopflow/internal/logging"
	"github.com/rivermist/shopflow/pkg/schema"
)

// advisorySubtasks is the fixed set dispatched per insight round. The
// outputs are read-only context for the execution loop, never state changes.
var advisorySubtasks = []struct {
	name   string
	prompt string
}{
	{name: "Planner", prompt: "Provide a short execution plan."},
	{name: "RiskCheck", prompt: "List missing info or risks."},
	{name: "SuccessCriteria", prompt: "State what a correct outcome looks like."},
}

// collectInsights runs the advisory sub-tasks concurrently against the
// executor, one batch per configured round. Sub-tasks carry no tool access.
// A failed sub-task contributes nothing; partial results are fine.
func (r *Runner) collectInsights(
	ctx context.Context,
	task string,
	step schema.StepDefinition,
	entities map[string]string,
) []string {
	if r.insightRounds <= 0 {
		return nil
	}

	taskContext := fmt.Sprintf("Step: %s - %s\nEntities: %v", step.Name, step.Description, entities)

	var insights []string
	for round := 1; round <= r.insightRounds; round++ {
		results := make([]string, len(advisorySubtasks))
		var wg sync.WaitGroup
		for i, sub := range advisorySubtasks {
			wg.Add(1)
			go func(i int, name, prompt string) {
				defer wg.Done()
				execution, err := r.executor.Execute(ctx, executor.Request{
					Task:         fmt.Sprintf("%s\nTask: %s\n%s", prompt, task, taskContext),
					AllowedTools: schema.ExactlyTools(),
				})
				if err != nil || execution.Error != "" || execution.Content == "" {
					logging.LogWith(ctx, r.logger).Warn("advisory sub-task skipped",
						"subtask", name, "error", err)
					return
				}
				results[i] = fmt.Sprintf("Round %d %s: %s", round, name, execution.Content)
			}(i, sub.name, sub.prompt)
		}
		wg.Wait()

		for _, res := range results {
			if res != "" {
				insights = append(insights, res)
			}
		}
	}
	return insights
}
