package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/skills"
)

// ListSkillsTool enumerates the loaded skills.
type ListSkillsTool struct {
	skills *skills.Index
}

func (t *ListSkillsTool) Name() string { return "list_skills" }
func (t *ListSkillsTool) Description() string {
	return "Lists all available skills with their descriptions."
}
func (t *ListSkillsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ListSkillsTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if t.skills == nil || t.skills.Len() == 0 {
		return "No skills are available.", nil
	}

	var sb strings.Builder
	sb.WriteString("Available skills:\n")
	for _, name := range t.skills.Names() {
		s, _ := t.skills.Get(name)
		sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Name, s.Description))
	}
	return sb.String(), nil
}

// SkillInfoTool returns the full body and references of one skill.
type SkillInfoTool struct {
	skills *skills.Index
}

func (t *SkillInfoTool) Name() string { return "get_skill_info" }
func (t *SkillInfoTool) Description() string {
	return "Returns the full documentation of a skill, including its instructions and any reference documents."
}
func (t *SkillInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the skill to look up.",
			},
		},
		"required": []string{"name"},
	}
}

func (t *SkillInfoTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	name, ok := stringArg(args, "name")
	if !ok {
		return "", errors.New("missing or invalid 'name' argument")
	}
	if t.skills == nil {
		return "", errors.New("no skills are available")
	}

	s, found := t.skills.Get(name)
	if !found {
		return fmt.Sprintf("Skill '%s' not found. Use list_skills to see available skills.", name), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Skill: %s\n\n%s\n", s.Name, s.Description))
	if s.AllowedTools != "" {
		sb.WriteString(fmt.Sprintf("\nAllowed tools: %s\n", s.AllowedTools))
	}
	if s.Body != "" {
		sb.WriteString("\n" + strings.TrimSpace(s.Body) + "\n")
	}
	if len(s.References) > 0 {
		refNames := make([]string, 0, len(s.References))
		for ref := range s.References {
			refNames = append(refNames, ref)
		}
		sort.Strings(refNames)
		for _, ref := range refNames {
			sb.WriteString(fmt.Sprintf("\n## Reference: %s\n\n%s\n", ref, strings.TrimSpace(s.References[ref])))
		}
	}
	return sb.String(), nil
}
