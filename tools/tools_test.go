package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/session"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
	return dir
}

func newTestRegistry(t *testing.T, cfg *config.Config) *Registry {
	t.Helper()
	store := session.NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	return NewRegistry(cfg, nil, store)
}

func TestRegistryDefaultEnabled(t *testing.T) {
	r := newTestRegistry(t, config.Default())

	for _, name := range []string{"file_create", "file_read", "file_edit", "execute_bash", "screenshot", "browse_internet", "plan", "clarify", "list_skills", "get_skill_info", "restart_cli"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("tool %s should be registered and enabled by default", name)
		}
	}
}

func TestRegistryConfigGating(t *testing.T) {
	cfg := config.Default()
	cfg.Tools = map[string]bool{"browse_internet": false}
	r := newTestRegistry(t, cfg)

	if _, ok := r.Get("browse_internet"); ok {
		t.Error("disabled tool should not be returned")
	}
	if _, ok := r.Get("file_read"); !ok {
		t.Error("unlisted tool should default to enabled")
	}

	for _, tool := range r.Active() {
		if tool.Name() == "browse_internet" {
			t.Error("disabled tool should not appear in Active()")
		}
	}
}

func TestRegistryVoiceGating(t *testing.T) {
	r := newTestRegistry(t, config.Default())

	if _, ok := r.Get("speak"); ok {
		t.Error("speak should be unavailable while voice mode is off")
	}

	r.SetVoiceMode(true)
	if _, ok := r.Get("speak"); !ok {
		t.Error("speak should be available in voice mode")
	}

	r.SetVoiceMode(false)
	if _, ok := r.Get("speak"); ok {
		t.Error("speak should be gated off again after voice mode is disabled")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := newTestRegistry(t, config.Default())
	if _, ok := r.Get("no_such_tool"); ok {
		t.Error("unknown tool lookup should fail")
	}
}

func TestIsCommandAllowed(t *testing.T) {
	allowed := []string{`^ls\b`, `^git (status|log)`}

	cases := []struct {
		command string
		want    bool
	}{
		{"ls -la", true},
		{"git status", true},
		{"git log --oneline", true},
		{"git push", false},
		{"rm -rf /", false},
		{"", false},
	}
	for _, c := range cases {
		got, err := isCommandAllowed(c.command, allowed)
		if err != nil {
			t.Fatalf("isCommandAllowed(%q): %v", c.command, err)
		}
		if got != c.want {
			t.Errorf("isCommandAllowed(%q) = %v, want %v", c.command, got, c.want)
		}
	}
}

func TestIsPathRestricted(t *testing.T) {
	patterns := []string{".parley", ".parley/**", "**/*.secret"}

	cases := []struct {
		path string
		want bool
	}{
		{".parley", true},
		{".parley/config.yaml", true},
		{"sub/dir/key.secret", true},
		{"main.go", false},
	}
	for _, c := range cases {
		got, err := isPathRestricted(c.path, patterns)
		if err != nil {
			t.Fatalf("isPathRestricted(%q): %v", c.path, err)
		}
		if got != c.want {
			t.Errorf("isPathRestricted(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestExecuteBashDisallowedCommand(t *testing.T) {
	tool := &ExecuteBashTool{allowedCommands: []string{`^echo\b`}}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"command": "rm -rf /"}); err == nil {
		t.Fatal("expected error for disallowed command")
	}
}

func TestExecuteBashRunsAllowedCommand(t *testing.T) {
	tool := &ExecuteBashTool{allowedCommands: []string{`^echo\b`}}
	out, err := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output should contain command output, got: %q", out)
	}
}
