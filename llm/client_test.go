package llm

import (
	"context"
	"testing"

	"github.com/m4xw311/parley/session"
)

func TestParseToolArgs(t *testing.T) {
	args := parseToolArgs(`{"path": "a.txt", "count": 3}`)
	if args["path"] != "a.txt" {
		t.Errorf("path = %v", args["path"])
	}
	if args["count"] != float64(3) {
		t.Errorf("count = %v", args["count"])
	}

	// Empty payload yields an empty map, not nil.
	args = parseToolArgs("")
	if args == nil || len(args) != 0 {
		t.Errorf("empty payload should yield empty map, got %v", args)
	}

	// Malformed payload still materializes; the error travels in the map.
	args = parseToolArgs(`{"path": `)
	if args["_parse_error"] == nil {
		t.Error("malformed payload should carry a parse error")
	}
	if args["_raw"] != `{"path": ` {
		t.Errorf("raw payload should be preserved, got %v", args["_raw"])
	}
}

func TestMockClientScript(t *testing.T) {
	client := NewMockClient(
		MockResponse{
			Content: "calling a tool",
			ToolCalls: []session.ToolCall{
				{ToolCallID: "call_1", Name: "file_read", Args: map[string]interface{}{"path": "a.txt"}},
			},
			Usage: &Usage{InputTokens: 10, OutputTokens: 5},
		},
		MockResponse{Content: "done"},
	)

	var events []StreamEvent
	record := func(ev StreamEvent) { events = append(events, ev) }

	msgs := []session.Message{{Role: "user", Content: "read a.txt"}}
	result, err := client.Stream(context.Background(), msgs, nil, record)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(result.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.Message.ToolCalls))
	}
	if result.Usage.Total() != 15 {
		t.Errorf("usage total = %d", result.Usage.Total())
	}

	sawText, sawCall := false, false
	for _, ev := range events {
		switch ev.Kind {
		case EventText:
			sawText = true
		case EventToolCall:
			sawCall = true
			if ev.ToolCall.ToolCallID != "call_1" {
				t.Errorf("event call ID = %s", ev.ToolCall.ToolCallID)
			}
		}
	}
	if !sawText || !sawCall {
		t.Errorf("expected text and tool-call events, got %+v", events)
	}

	result, err = client.Stream(context.Background(), msgs, nil, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if result.Message.Content != "done" {
		t.Errorf("second response = %q", result.Message.Content)
	}

	if len(client.Calls) != 2 {
		t.Errorf("expected 2 recorded calls, got %d", len(client.Calls))
	}
}

func TestMockClientCancelled(t *testing.T) {
	client := NewMockClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Stream(ctx, nil, nil, nil); err == nil {
		t.Fatal("cancelled context should return an error")
	}
}
