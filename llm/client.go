// Package llm provides streaming clients for the supported model
// providers behind a single provider-agnostic interface.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tools"
)

// EventKind discriminates the typed content chunks a model stream
// produces.
type EventKind int

const (
	EventText EventKind = iota
	EventThought
	EventToolCall
)

// StreamEvent is one typed chunk from the model stream. Text and
// Thought events carry incremental deltas; ToolCall events carry a
// fully materialized call.
type StreamEvent struct {
	Kind     EventKind
	Text     string
	ToolCall *session.ToolCall
}

// EventFunc receives stream events as they arrive.
type EventFunc func(StreamEvent)

// Usage is the provider-reported token accounting for one exchange.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the combined token count.
func (u *Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Result is the outcome of a completed (or interrupted) stream: the
// assembled assistant message plus usage when the provider reports it.
type Result struct {
	Message *session.Message
	Usage   *Usage
}

// Client is the interface for interacting with a model provider.
// Stream sends the conversation and forwards typed events via onEvent
// while assembling the full assistant message. When ctx is cancelled
// mid-stream, implementations return whatever partial Result they have
// together with ctx.Err().
type Client interface {
	Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onEvent EventFunc) (*Result, error)
}

// parseToolArgs normalizes a JSON-encoded argument payload into the
// structured form tools consume. A malformed payload still materializes
// the call; the parse error travels in the argument map so dispatch can
// surface it as tool output instead of crashing the turn.
func parseToolArgs(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{
			"_parse_error": fmt.Sprintf("malformed tool arguments: %v", err),
			"_raw":         raw,
		}
	}
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// emit invokes onEvent when a callback is installed.
func emit(onEvent EventFunc, ev StreamEvent) {
	if onEvent != nil {
		onEvent(ev)
	}
}
