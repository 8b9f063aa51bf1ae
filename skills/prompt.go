package skills

import (
	"fmt"
	"sort"
	"strings"
)

// Inventory renders the skill list for the system prompt. Returns an
// empty string when no skills are loaded.
func (idx *Index) Inventory() string {
	if idx.Len() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## AVAILABLE SKILLS\n\n")
	sb.WriteString("The following skills are available in the system:\n\n")

	for _, name := range idx.Names() {
		skill := idx.skills[name]
		desc := skill.Description
		if desc == "" {
			desc = "No description"
		}
		allowed := skill.AllowedTools
		if allowed == "" {
			allowed = "None specified"
		}
		sb.WriteString(fmt.Sprintf("### %s\n", name))
		sb.WriteString(fmt.Sprintf("- **Description**: %s\n", desc))
		sb.WriteString(fmt.Sprintf("- **Allowed Tools**: %s\n\n", allowed))
	}

	sb.WriteString("To use a skill, mention its name and describe what you want to accomplish.\n")
	sb.WriteString("The assistant will automatically leverage the appropriate skill's capabilities.\n")
	return sb.String()
}

// UsageGuide renders guidance on referencing loaded skills. Returns an
// empty string when no skills are loaded.
func (idx *Index) UsageGuide() string {
	if idx.Len() == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## SKILL USAGE GUIDE\n\n")
	sb.WriteString("### Referencing Skills\n\n")
	sb.WriteString("When a skill is loaded, you can reference it by name:\n\n")
	sb.WriteString("- **Direct mention**: \"Use playwright-cli to navigate to example.com\"\n")
	sb.WriteString("- **Command execution**: run the skill's CLI through the execute_bash tool\n")
	sb.WriteString("- **Reference documentation**: some skills ship detailed reference docs\n\n")

	var withRefs []string
	for _, name := range idx.Names() {
		if len(idx.skills[name].References) > 0 {
			withRefs = append(withRefs, name)
		}
	}
	if len(withRefs) > 0 {
		sb.WriteString("### Skills With Reference Docs\n\n")
		for _, name := range withRefs {
			skill := idx.skills[name]
			sb.WriteString(fmt.Sprintf("**%s** has references for:\n", name))
			for _, ref := range sortedKeys(skill.References) {
				sb.WriteString(fmt.Sprintf("- %s\n", ref))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("### Best Practices\n\n")
	sb.WriteString("1. Mention the skill name when asking about related tasks\n")
	sb.WriteString("2. Check the skill description to understand available capabilities\n")
	sb.WriteString("3. Use get_skill_info for full command syntax and examples\n")
	return sb.String()
}

// WriterGuide renders documentation on authoring new skills. It is
// static and always included so the model can create skills on request.
func WriterGuide() string {
	return `## WRITING NEW SKILLS

Skills extend the assistant by describing CLI tools it can drive through
shell execution. Each skill is a self-contained directory under
` + "`" + DefaultDir + "`" + `:

    <skill-name>/
        SKILL.md          # required: YAML front-matter + markdown body
        references/       # optional *.md reference documents

SKILL.md starts with front-matter:

    ---
    name: your-skill-name
    description: What this skill does
    allowed-tools: Bash(your-cli:*)
    ---

followed by markdown explaining how to use the skill. The allowed-tools
pattern names the CLI commands the skill grants access to; "Bash(x:*)"
means every subcommand of the x binary. Skills do not register new
callable tools; they document capabilities reachable through the
execute_bash tool.`
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
