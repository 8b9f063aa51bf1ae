package tools

import (
	"context"

	"github.com/m4xw311/parley/errors"
)

// PlanTool records the model's working plan. It has no side effects;
// stating a plan as a tool call keeps it in the conversation as a
// durable artifact the model can refer back to.
type PlanTool struct{}

func (t *PlanTool) Name() string { return "plan" }
func (t *PlanTool) Description() string {
	return "Record a step-by-step plan before starting a multi-step task. The plan is echoed back and stays in the conversation for reference."
}
func (t *PlanTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"steps": map[string]interface{}{
				"type":        "string",
				"description": "The plan as a numbered list of steps.",
			},
		},
		"required": []string{"steps"},
	}
}

func (t *PlanTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	steps, ok := stringArg(args, "steps")
	if !ok {
		return "", errors.New("missing or invalid 'steps' argument")
	}
	return "Plan recorded:\n" + steps, nil
}
