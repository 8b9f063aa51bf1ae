package llm

import (
	"context"
	"fmt"

	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
)

// MockClient is a scriptable client for tests and the "mock" provider.
// Responses are consumed in order; when the script runs out it parrots
// the last user message.
type MockClient struct {
	Responses []MockResponse
	// Calls records every message list the client was invoked with.
	Calls [][]session.Message
	next  int
}

// MockResponse is one scripted exchange.
type MockResponse struct {
	Content   string
	Thought   string
	ToolCalls []session.ToolCall
	Usage     *Usage
	Err       error
}

func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{Responses: responses}
}

func (m *MockClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent EventFunc) (*Result, error) {
	m.Calls = append(m.Calls, append([]session.Message(nil), messages...))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.next >= len(m.Responses) {
		// Out of script: parrot the last message like a stub model.
		last := ""
		if len(messages) > 0 {
			last = messages[len(messages)-1].Content
		}
		content := fmt.Sprintf("I am a mock model. You said: '%s'.", last)
		emit(onEvent, StreamEvent{Kind: EventText, Text: content})
		return &Result{Message: &session.Message{Role: "assistant", Content: content}}, nil
	}

	resp := m.Responses[m.next]
	m.next++

	if resp.Err != nil {
		return nil, resp.Err
	}

	if resp.Thought != "" {
		emit(onEvent, StreamEvent{Kind: EventThought, Text: resp.Thought})
	}
	if resp.Content != "" {
		emit(onEvent, StreamEvent{Kind: EventText, Text: resp.Content})
	}
	for i := range resp.ToolCalls {
		tc := resp.ToolCalls[i]
		emit(onEvent, StreamEvent{Kind: EventToolCall, ToolCall: &tc})
	}

	return &Result{
		Message: &session.Message{
			Role:      "assistant",
			Content:   resp.Content,
			Thought:   resp.Thought,
			ToolCalls: resp.ToolCalls,
		},
		Usage: resp.Usage,
	}, nil
}
