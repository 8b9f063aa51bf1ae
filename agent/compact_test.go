package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/m4xw311/parley/llm"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
)

func TestCompactReplacesHistory(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Content: "We discussed widgets."},
	)
	a := newTestAgent(t, client)
	a.Session.AddMessage(session.Message{Role: "user", Content: "tell me about widgets"})
	a.Session.AddMessage(session.Message{Role: "assistant", Content: "widgets are great"})

	summary, err := a.Compact(context.Background(), false)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if summary != "We discussed widgets." {
		t.Errorf("summary = %q", summary)
	}

	if len(a.Session.Messages) != 2 {
		t.Fatalf("history has %d messages after compaction, want 2", len(a.Session.Messages))
	}
	if a.Session.Messages[0].Role != "system" {
		t.Errorf("first message role = %s, want system", a.Session.Messages[0].Role)
	}
	second := a.Session.Messages[1]
	if second.Role != "user" {
		t.Errorf("second message role = %s, want user", second.Role)
	}
	if !strings.HasPrefix(second.Content, "Previous conversation compacted.") {
		t.Errorf("manual compaction framing missing: %q", second.Content)
	}
	if !strings.Contains(second.Content, "We discussed widgets.") {
		t.Errorf("summary missing from framing message: %q", second.Content)
	}
	if !strings.Contains(second.Content, "continue the conversation from this point") {
		t.Errorf("continuation note missing: %q", second.Content)
	}
}

func TestCompactAutoFraming(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "summary"})
	a := newTestAgent(t, client)

	if _, err := a.Compact(context.Background(), true); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !strings.HasPrefix(a.Session.Messages[1].Content, "Previous conversation auto-compacted.") {
		t.Errorf("auto framing missing: %q", a.Session.Messages[1].Content)
	}
}

// failingClient always errors, exercising the summarization fallback.
type failingClient struct{}

func (f *failingClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent llm.EventFunc) (*llm.Result, error) {
	return nil, fmt.Errorf("model unavailable")
}

func TestCompactFallbackOnSummarizerError(t *testing.T) {
	a := newTestAgent(t, &failingClient{})
	a.Session.AddMessage(session.Message{Role: "user", Content: "hi"})
	a.Session.AddMessage(session.Message{Role: "assistant", Content: "hello"})

	summary, err := a.Compact(context.Background(), false)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !strings.Contains(summary, "Original conversation had 3 messages") {
		t.Errorf("fallback should name the message count, got %q", summary)
	}
	if !strings.Contains(summary, "model unavailable") {
		t.Errorf("fallback should carry the error, got %q", summary)
	}
	// Compaction still shrank the history.
	if len(a.Session.Messages) != 2 {
		t.Errorf("history has %d messages, want 2", len(a.Session.Messages))
	}
}

func TestAutoCompactionTriggersBeforeTurn(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Content: "compact summary"},
		llm.MockResponse{Content: "reply"},
	)
	a := newTestAgent(t, client)
	a.tokenCount = a.Config.ContextLimit() + 1

	var compacted string
	cb := ProcessCallbacks{OnCompaction: func(s string) { compacted = s }}
	if err := a.ProcessUserInput(context.Background(), "hello again", cb); err != nil {
		t.Fatalf("ProcessUserInput: %v", err)
	}

	if compacted != "compact summary" {
		t.Errorf("OnCompaction received %q", compacted)
	}
	// system, compaction framing, new user input, assistant reply
	if len(a.Session.Messages) != 4 {
		t.Fatalf("history has %d messages, want 4", len(a.Session.Messages))
	}
	if !strings.Contains(a.Session.Messages[1].Content, "auto-compacted") {
		t.Errorf("pre-turn compaction should use auto framing: %q", a.Session.Messages[1].Content)
	}
	if a.Session.Messages[2].Content != "hello again" {
		t.Errorf("user input should follow the compaction message, got %q", a.Session.Messages[2].Content)
	}
}

func TestCompactionThresholdBoundary(t *testing.T) {
	a := newTestAgent(t, llm.NewMockClient())
	a.Config.LLM.ContextSize = 1000
	a.Config.ContextLimitPercentage = 0.5

	a.tokenCount = 499
	if a.shouldCompact() {
		t.Error("must not compact below the budget")
	}
	a.tokenCount = 500
	if !a.shouldCompact() {
		t.Error("must compact at the budget")
	}
}

func TestBuildSummaryPromptNamesToolCalls(t *testing.T) {
	prompt := buildSummaryPrompt([]session.Message{
		{Role: "user", Content: "run the tests"},
		{Role: "assistant", Content: "", ToolCalls: []session.ToolCall{{ToolCallID: "c1", Name: "execute_bash"}}},
		{Role: "tool", Content: "all passed", ToolCalls: []session.ToolCall{{ToolCallID: "c1", Name: "execute_bash"}}},
	})

	if !strings.Contains(prompt, "USER: run the tests") {
		t.Errorf("prompt missing user line:\n%s", prompt)
	}
	if !strings.Contains(prompt, "(called tool execute_bash)") {
		t.Errorf("prompt missing tool call note:\n%s", prompt)
	}
	if !strings.Contains(prompt, "comprehensive summary") {
		t.Errorf("prompt missing closing request:\n%s", prompt)
	}
}
