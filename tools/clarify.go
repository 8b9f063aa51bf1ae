package tools

import (
	"context"
	"fmt"

	"github.com/m4xw311/parley/errors"
)

// ClarifyName is the tool name the turn loop special-cases: a clarify
// call blocks for user input instead of going through Execute.
const ClarifyName = "clarify"

// ClarifyTool asks the human user a question. The registry carries it
// only for its schema; the turn loop resolves clarify calls
// interactively and never dispatches them here.
type ClarifyTool struct{}

func (t *ClarifyTool) Name() string { return ClarifyName }
func (t *ClarifyTool) Description() string {
	return "Ask the user a clarifying question. Use when the task has multiple interpretations, requirements are unclear, or an important decision depends on the user's preference. The user's answer is returned as the tool result."
}
func (t *ClarifyTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{
				"type":        "string",
				"description": "The clarifying question to ask the user.",
			},
		},
		"required": []string{"question"},
	}
}

func (t *ClarifyTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	question, ok := stringArg(args, "question")
	if !ok {
		return "", errors.New("missing or invalid 'question' argument")
	}
	// Reached only when no interactive handler is installed.
	return fmt.Sprintf("CLARIFY: %s", question), nil
}

// Question extracts the question text from a clarify call's arguments.
func (t *ClarifyTool) Question(args map[string]interface{}) string {
	q, _ := stringArg(args, "question")
	return q
}
