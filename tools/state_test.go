package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/parley/session"
)

func newTestStore(t *testing.T) *session.StateStore {
	t.Helper()
	return session.NewStateStore(filepath.Join(t.TempDir(), "state.json"))
}

func TestRestartStateRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	set := &SetRestartStateTool{store: store}
	out, err := set.Execute(ctx, map[string]interface{}{"key": "pending_task", "value": "fix the parser"})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "pending_task") {
		t.Errorf("set output should name the key, got %q", out)
	}

	get := &GetRestartStateTool{store: store}
	out, err = get.Execute(ctx, map[string]interface{}{"key": "pending_task"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "fix the parser") {
		t.Errorf("get output should contain the value, got %q", out)
	}

	// Listing keys when none requested
	out, err = get.Execute(ctx, map[string]interface{}{})
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if !strings.Contains(out, "'pending_task'") {
		t.Errorf("key listing should include stored keys, got %q", out)
	}

	clear := &ClearRestartStateTool{store: store}
	if _, err := clear.Execute(ctx, map[string]interface{}{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = get.Execute(ctx, map[string]interface{}{})
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if !strings.Contains(out, "No state stored") {
		t.Errorf("state should be empty after clear, got %q", out)
	}
}

func TestGetRestartStateMissingKey(t *testing.T) {
	get := &GetRestartStateTool{store: newTestStore(t)}
	out, err := get.Execute(context.Background(), map[string]interface{}{"key": "nope"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("missing key should report not found, got %q", out)
	}
}

func TestRestartStoresInstruction(t *testing.T) {
	store := newTestStore(t)

	execCalled := false
	origExec := execProcess
	execProcess = func() error {
		execCalled = true
		return nil
	}
	defer func() { execProcess = origExec }()

	restart := &RestartTool{store: store}
	if _, err := restart.Execute(context.Background(), map[string]interface{}{
		"instruction": "Continue working on the migration",
	}); err != nil {
		t.Fatalf("restart: %v", err)
	}

	if !execCalled {
		t.Error("restart should replace the process")
	}
	v, ok, err := store.Get(RestartInstructionKey)
	if err != nil || !ok {
		t.Fatalf("instruction not stored: ok=%v err=%v", ok, err)
	}
	if v != "Continue working on the migration" {
		t.Errorf("stored instruction = %v", v)
	}
}
