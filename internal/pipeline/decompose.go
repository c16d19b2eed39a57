package pipeline

import (
	"context"
	"fmt"
)

const decomposeSystem = "You are a financial task coordinator. Break down the " +
	"user's question into specific analytical tasks. Focus on financial aspects " +
	"that need to be analyzed."

// decompose asks the generator for a short task outline. The outline is
// advisory text; nothing downstream parses it.
func (p *Pipeline) decompose(ctx context.Context, state *State) error {
	prompt := fmt.Sprintf("Break the financial question into 2-3 concise tasks.\n\nQuestion: %s", state.Question)

	tasks, err := p.generator.Generate(ctx, decomposeSystem, prompt)
	if err != nil {
		return fmt.Errorf("task decomposition: %w", err)
	}
	state.TaskList = tasks
	return nil
}
