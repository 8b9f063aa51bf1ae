// Package prompt assembles the system prompt from static fragments,
// optional guidance files, a generated model-capability section, and
// the skill inventory.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/errors"
	"github.com/m4xw311/parley/skills"
)

// DefaultDir is the prompt fragment override directory relative to the
// working directory.
const DefaultDir = "prompts"

// baseFragments are the required fragment files, loaded in order.
var baseFragments = []string{"persona.md", "agent.md", "system.md"}

// defaultFragments ships the fragments inside the binary, so the agent
// starts anywhere; on-disk files in DefaultDir override them.
//
//go:embed defaults/*.md
var defaultFragments embed.FS

// guidanceFile is optional project guidance; silently skipped if absent.
const guidanceFile = "CLAUDE.md"

// Assemble builds the complete system prompt.
func Assemble(dir string, cfg *config.Config, idx *skills.Index) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}

	var parts []string
	for _, name := range baseFragments {
		text, err := loadFragment(dir, name)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}

	if guidance := loadGuidance(); guidance != "" {
		parts = append(parts, guidance)
	}

	parts = append(parts, ModelSection(cfg))

	if idx != nil {
		if inv := idx.Inventory(); inv != "" {
			parts = append(parts, inv)
		}
		if guide := idx.UsageGuide(); guide != "" {
			parts = append(parts, guide)
		}
	}
	parts = append(parts, skills.WriterGuide())

	return strings.Join(parts, "\n\n"), nil
}

// loadFragment prefers the on-disk override, falling back to the
// embedded default.
func loadFragment(dir, name string) (string, error) {
	if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	data, err := defaultFragments.ReadFile("defaults/" + name)
	if err != nil {
		return "", errors.Wrapf(err, "prompt fragment '%s' has no override and no embedded default", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// loadGuidance reads the optional CLAUDE.md from the working directory.
func loadGuidance() string {
	data, err := os.ReadFile(guidanceFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ModelSection renders the model-capability description derived from
// configuration, so the model knows what it can and cannot do.
func ModelSection(cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString("## MODEL CONFIGURATION\n\n")
	sb.WriteString(fmt.Sprintf("- Provider: %s\n", cfg.LLM.Provider))
	sb.WriteString(fmt.Sprintf("- Model: %s\n", cfg.LLM.ModelName))
	sb.WriteString(fmt.Sprintf("- Context window: %d tokens\n", cfg.LLM.ContextSize))
	sb.WriteString(fmt.Sprintf("- Max completion tokens: %d\n", cfg.LLM.MaxCompletionTokens))

	if cfg.LLM.SupportImage {
		sb.WriteString("- Image support: enabled. Screenshot results are attached as images.\n")
	} else {
		sb.WriteString("- Image support: disabled. Screenshot results are file paths only.\n")
	}

	if cfg.LLM.Thinking.Level != "" {
		sb.WriteString(fmt.Sprintf("- Extended thinking: %s", cfg.LLM.Thinking.Level))
		if cfg.LLM.Thinking.IncludeThoughts {
			sb.WriteString(" (thoughts shown to the user)")
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
