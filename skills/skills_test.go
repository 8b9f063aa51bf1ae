package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, name, frontName, description, allowedTools string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	content := "---\n"
	if frontName != "" {
		content += "name: " + frontName + "\n"
	}
	content += "description: " + description + "\n"
	if allowedTools != "" {
		content += "allowed-tools: " + allowedTools + "\n"
	}
	content += "---\n\n# " + name + "\n\nSkill body text.\n"
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	if err != nil {
		t.Fatalf("Expected no error for missing directory, got: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Expected empty index, got %d skills", idx.Len())
	}
	if idx.Inventory() != "" {
		t.Error("Expected empty inventory for empty index")
	}
}

func TestLoadSkills(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "playwright", "playwright-cli", "Browser automation", "Bash(playwright-cli:*)")
	writeSkill(t, dir, "imaging", "image-cli", "Image processing", "Bash(image-cli:*)")

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Expected 2 skills, got %d", idx.Len())
	}

	skill, ok := idx.Get("playwright-cli")
	if !ok {
		t.Fatal("Expected playwright-cli to be loaded")
	}
	if skill.Description != "Browser automation" {
		t.Errorf("Unexpected description: %q", skill.Description)
	}
	if skill.AllowedTools != "Bash(playwright-cli:*)" {
		t.Errorf("Unexpected allowed tools: %q", skill.AllowedTools)
	}
	if !strings.Contains(skill.Body, "Skill body text.") {
		t.Errorf("Expected body to survive front-matter parsing, got %q", skill.Body)
	}
}

func TestNameFallsBackToDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "unnamed", "", "No explicit name", "")

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := idx.Get("unnamed"); !ok {
		t.Errorf("Expected skill named after its directory, have %v", idx.Names())
	}
}

func TestDuplicateNamesLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a-first", "dup", "first definition", "")
	writeSkill(t, dir, "b-second", "dup", "second definition", "")

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("Expected 1 skill after duplicate collapse, got %d", idx.Len())
	}
	skill, _ := idx.Get("dup")
	if skill.Description != "second definition" {
		t.Errorf("Expected last write to win, got %q", skill.Description)
	}
}

func TestEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "keep", "keep", "kept skill", "")
	writeSkill(t, dir, "drop", "drop", "dropped skill", "")

	idx, err := Load(dir, func(name string) bool { return name != "drop" })
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := idx.Get("drop"); ok {
		t.Error("Expected disabled skill to be excluded")
	}
	if _, ok := idx.Get("keep"); !ok {
		t.Error("Expected enabled skill to be included")
	}
}

func TestReferences(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "refs", "refs", "skill with references", "Bash(refs:*)")
	refsDir := filepath.Join(dir, "refs", "references")
	if err := os.MkdirAll(refsDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(refsDir, "usage.md"), []byte("usage doc"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	skill, _ := idx.Get("refs")
	if skill.References["usage"] != "usage doc" {
		t.Errorf("Expected usage reference, got %v", skill.References)
	}

	guide := idx.UsageGuide()
	if !strings.Contains(guide, "refs") || !strings.Contains(guide, "usage") {
		t.Errorf("Expected usage guide to mention references, got %q", guide)
	}
}

func TestToolPatternLookup(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "playwright", "playwright-cli", "Browser automation", "Bash(playwright-cli:*)")

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := idx.SkillsForTool("playwright-cli:*")
	if len(names) != 1 || names[0] != "playwright-cli" {
		t.Errorf("Unexpected reverse lookup result: %v", names)
	}

	names = idx.SkillsForCommand("playwright-cli open example.com")
	if len(names) != 1 || names[0] != "playwright-cli" {
		t.Errorf("Expected command match, got %v", names)
	}

	if names := idx.SkillsForCommand("unrelated-cli run"); len(names) != 0 {
		t.Errorf("Expected no match for unrelated command, got %v", names)
	}
}

func TestInventoryRendering(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "playwright", "playwright-cli", "Browser automation", "Bash(playwright-cli:*)")

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	inv := idx.Inventory()
	for _, want := range []string{"AVAILABLE SKILLS", "playwright-cli", "Browser automation", "Bash(playwright-cli:*)"} {
		if !strings.Contains(inv, want) {
			t.Errorf("Expected inventory to contain %q:\n%s", want, inv)
		}
	}
}

func TestSkillWithoutFrontmatter(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "plain")
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("# Plain skill\n\nNo front-matter here.\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	idx, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	skill, ok := idx.Get("plain")
	if !ok {
		t.Fatal("Expected skill without front-matter to load under its directory name")
	}
	if !strings.Contains(skill.Body, "No front-matter here.") {
		t.Errorf("Unexpected body: %q", skill.Body)
	}
}

func TestWriterGuideMentionsFormat(t *testing.T) {
	guide := WriterGuide()
	for _, want := range []string{"SKILL.md", "allowed-tools", "execute_bash"} {
		if !strings.Contains(guide, want) {
			t.Errorf("Expected writer guide to mention %q", want)
		}
	}
}
