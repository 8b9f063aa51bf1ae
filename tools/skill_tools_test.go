package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/parley/skills"
)

func loadTestSkills(t *testing.T) *skills.Index {
	t.Helper()
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "web-testing")
	if err := os.MkdirAll(filepath.Join(skillDir, "references"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `---
name: web-testing
description: Drive a browser through its CLI.
allowed-tools: Bash(playwright-cli:*)
---

Run playwright-cli commands to test pages.
`
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "references", "selectors.md"), []byte("Prefer data-testid selectors."), 0o644); err != nil {
		t.Fatalf("write reference: %v", err)
	}

	idx, err := skills.Load(dir, nil)
	if err != nil {
		t.Fatalf("skills.Load: %v", err)
	}
	return idx
}

func TestListSkills(t *testing.T) {
	tool := &ListSkillsTool{skills: loadTestSkills(t)}
	out, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "web-testing") || !strings.Contains(out, "Drive a browser") {
		t.Errorf("listing should include skill name and description, got:\n%s", out)
	}
}

func TestListSkillsEmpty(t *testing.T) {
	tool := &ListSkillsTool{}
	out, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "No skills") {
		t.Errorf("empty index should report no skills, got %q", out)
	}
}

func TestGetSkillInfo(t *testing.T) {
	tool := &SkillInfoTool{skills: loadTestSkills(t)}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"name": "web-testing"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"web-testing", "playwright-cli", "Run playwright-cli commands", "selectors", "data-testid"} {
		if !strings.Contains(out, want) {
			t.Errorf("skill info missing %q:\n%s", want, out)
		}
	}
}

func TestGetSkillInfoUnknown(t *testing.T) {
	tool := &SkillInfoTool{skills: loadTestSkills(t)}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"name": "nope"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("unknown skill should report not found, got %q", out)
	}
}
