package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/session"
)

// RestartInstructionKey is where restart_cli stores the instruction to
// execute automatically after the process restarts.
const RestartInstructionKey = "last_instruction"

// SetRestartStateTool stores a key/value pair that survives a restart.
type SetRestartStateTool struct {
	store *session.StateStore
}

func (t *SetRestartStateTool) Name() string { return "set_restart_state" }
func (t *SetRestartStateTool) Description() string {
	return "Store a key/value pair that will be available after the CLI restarts. Use for preferences, context, or pending tasks."
}
func (t *SetRestartStateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Descriptive, lowercase, underscore-separated key.",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "The value to store.",
			},
		},
		"required": []string{"key", "value"},
	}
}

func (t *SetRestartStateTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	key, keyOk := stringArg(args, "key")
	if !keyOk || key == "" {
		return "", errors.New("missing or invalid 'key' argument")
	}
	value, present := args["value"]
	if !present {
		return "", errors.New("missing 'value' argument")
	}
	if err := t.store.Set(key, value); err != nil {
		return "", errors.Wrapf(err, "could not store state")
	}
	return fmt.Sprintf("State stored: '%s' = %v", key, value), nil
}

// GetRestartStateTool retrieves stored state from a previous session.
type GetRestartStateTool struct {
	store *session.StateStore
}

func (t *GetRestartStateTool) Name() string { return "get_restart_state" }
func (t *GetRestartStateTool) Description() string {
	return "Retrieve state stored before a restart. Omit the key to list all stored keys."
}
func (t *GetRestartStateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Specific key to retrieve. Omit to list available keys.",
			},
		},
	}
}

func (t *GetRestartStateTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	key, _ := stringArg(args, "key")
	if key != "" {
		value, ok, err := t.store.Get(key)
		if err != nil {
			return "", errors.Wrapf(err, "could not read state")
		}
		if !ok {
			return fmt.Sprintf("Key '%s' not found in state.", key), nil
		}
		return fmt.Sprintf("State '%s' = %v", key, value), nil
	}

	keys, err := t.store.Keys()
	if err != nil {
		return "", errors.Wrapf(err, "could not read state")
	}
	if len(keys) == 0 {
		return "No state stored.", nil
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = "'" + k + "'"
	}
	return fmt.Sprintf("Available state keys: %s", strings.Join(quoted, ", ")), nil
}

// ClearRestartStateTool removes all stored state.
type ClearRestartStateTool struct {
	store *session.StateStore
}

func (t *ClearRestartStateTool) Name() string { return "clear_restart_state" }
func (t *ClearRestartStateTool) Description() string {
	return "Clear all state stored from previous sessions."
}
func (t *ClearRestartStateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ClearRestartStateTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if err := t.store.Clear(); err != nil {
		return "", errors.Wrapf(err, "could not clear state")
	}
	return "State cleared.", nil
}

// execProcess replaces the current process image. Stubbed in tests.
var execProcess = func() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}

// RestartTool re-executes the CLI binary. An optional instruction is
// stored first and picked up automatically on startup.
type RestartTool struct {
	store *session.StateStore
}

func (t *RestartTool) Name() string { return "restart_cli" }
func (t *RestartTool) Description() string {
	return "Restart the CLI process. Only use when the user explicitly asks for a restart. An optional instruction is executed automatically after the restart; it must describe concrete work, never just 'continue' or 'restart'."
}
func (t *RestartTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instruction": map[string]interface{}{
				"type":        "string",
				"description": "Instruction to execute after the restart, e.g. 'Continue fixing the bug in main.go'.",
			},
		},
	}
}

func (t *RestartTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if instruction, _ := stringArg(args, "instruction"); instruction != "" {
		// A failed state write should not block the restart itself.
		if err := t.store.Set(RestartInstructionKey, instruction); err != nil {
			fmt.Printf("Warning: could not store restart instruction: %v\n", err)
		}
	}
	if err := execProcess(); err != nil {
		return "", errors.Wrapf(err, "could not restart process")
	}
	return "Restarting...", nil
}
