package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/skills"
)

// ExecuteBashTool runs shell commands through the configured allowlist.
type ExecuteBashTool struct {
	allowedCommands []string
	skills          *skills.Index
}

func (t *ExecuteBashTool) Name() string { return "execute_bash" }
func (t *ExecuteBashTool) Description() string {
	desc := "Executes a shell command and returns its combined output."
	if len(t.allowedCommands) == 0 {
		return desc + " No commands are currently allowed."
	}

	allowedList := "Allowed command patterns:\n"
	for _, cmd := range t.allowedCommands {
		allowedList += fmt.Sprintf("- %s\n", cmd)
	}
	return fmt.Sprintf("%s\n%s", desc, allowedList)
}

func (t *ExecuteBashTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to run.",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecuteBashTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, ok := stringArg(args, "command")
	if !ok {
		return "", errors.New("missing or invalid 'command' argument")
	}

	allowed, err := isCommandAllowed(command, t.allowedCommands)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", errors.New("command '%s' is not in the list of allowed commands", command)
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "command execution failed. Output:\n%s", string(output))
	}

	result := fmt.Sprintf("Command executed successfully. Output:\n%s", string(output))
	if hint := t.skillHint(command); hint != "" {
		result += hint
	}
	return result, nil
}

// skillHint points the model at skills covering the command it just ran.
func (t *ExecuteBashTool) skillHint(command string) string {
	if t.skills == nil {
		return ""
	}
	names := t.skills.SkillsForCommand(command)
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("\nNote: skill(s) available for this command: %s. Use get_skill_info for usage details.", strings.Join(names, ", "))
}
