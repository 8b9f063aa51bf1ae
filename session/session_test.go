package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSessionStartsWithSystemPrompt(t *testing.T) {
	chdirTemp(t)

	sess, err := New("test", "You are a helpful assistant.")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if len(sess.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != "system" {
		t.Errorf("Expected first message role 'system', got '%s'", sess.Messages[0].Role)
	}
	if sess.SystemPrompt() != "You are a helpful assistant." {
		t.Errorf("Unexpected system prompt: %q", sess.SystemPrompt())
	}
}

func TestResetKeepsOnlySystemPrompt(t *testing.T) {
	chdirTemp(t)

	sess, err := New("test", "system prompt")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	for i := 0; i < 10; i++ {
		sess.AddMessage(Message{Role: "user", Content: "hello"})
		sess.AddMessage(Message{Role: "assistant", Content: "hi"})
	}

	sess.Reset()

	if len(sess.Messages) != 1 {
		t.Fatalf("Expected exactly 1 message after reset, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != "system" || sess.Messages[0].Content != "system prompt" {
		t.Errorf("Reset did not preserve the system prompt: %+v", sess.Messages[0])
	}
}

func TestReplace(t *testing.T) {
	chdirTemp(t)

	sess, err := New("test", "system prompt")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	sess.AddMessage(Message{Role: "user", Content: "a"})
	sess.AddMessage(Message{Role: "assistant", Content: "b"})

	sess.Replace([]Message{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "summary"},
	})

	if len(sess.Messages) != 2 {
		t.Fatalf("Expected 2 messages after replace, got %d", len(sess.Messages))
	}
	if sess.Messages[1].Content != "summary" {
		t.Errorf("Unexpected second message: %+v", sess.Messages[1])
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	chdirTemp(t)

	sess, err := New("roundtrip", "system prompt")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	sess.AddMessage(Message{
		Role: "assistant",
		ToolCalls: []ToolCall{
			{ToolCallID: "call_1", Name: "file_read", Args: map[string]interface{}{"path": "x.txt"}},
		},
	})
	sess.AddMessage(ToolMessage(ToolOutput{ToolCallID: "call_1", Name: "file_read", Result: "contents"}))

	if err := sess.Save(); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	loaded, err := Load("roundtrip")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(loaded.Messages))
	}
	toolMsg := loaded.Messages[2]
	if toolMsg.Role != "tool" || toolMsg.Content != "contents" {
		t.Errorf("Unexpected tool message: %+v", toolMsg)
	}
	if len(toolMsg.ToolCalls) != 1 || toolMsg.ToolCalls[0].ToolCallID != "call_1" {
		t.Errorf("Tool message lost its call association: %+v", toolMsg.ToolCalls)
	}
}

func TestToolMessageCarriesImage(t *testing.T) {
	msg := ToolMessage(ToolOutput{
		ToolCallID: "call_7",
		Name:       "screenshot",
		Result:     "screenshot/abc.png",
		ImagePath:  "screenshot/abc.png",
	})

	if msg.Role != "tool" {
		t.Errorf("Expected role 'tool', got '%s'", msg.Role)
	}
	if len(msg.Images) != 1 || msg.Images[0] != "screenshot/abc.png" {
		t.Errorf("Expected image path to be attached, got %v", msg.Images)
	}
}

func TestStateStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStateStore(path)

	// Empty store
	_, ok, err := store.Get("missing")
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if ok {
		t.Error("Expected missing key to be absent")
	}

	if err := store.Set("last_instruction", "continue the refactor"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("count", 3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, ok, err := store.Get("last_instruction")
	if err != nil || !ok {
		t.Fatalf("Get failed: v=%v ok=%v err=%v", v, ok, err)
	}
	if v != "continue the refactor" {
		t.Errorf("Unexpected value: %v", v)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "count" || keys[1] != "last_instruction" {
		t.Errorf("Unexpected keys: %v", keys)
	}

	if err := store.Delete("count"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get("count"); ok {
		t.Error("Expected deleted key to be absent")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected state file to be removed")
	}
	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("Second clear should not fail: %v", err)
	}
}

// chdirTemp switches the working directory to a temp dir so session
// files land somewhere disposable.
func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}
