// Package agent provides the core turn-resolution loop: it drives one
// user turn to completion, streaming model output, dispatching tool
// calls, and resuming the model with their results until no calls
// remain or the user interrupts.
package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/llm"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tokens"
	"github.com/m4xw311/parley/tools"
)

// InterruptedPlaceholder is appended when an interrupt arrives before
// any assistant output materialized.
const InterruptedPlaceholder = "[Response interrupted by user]"

// ProcessCallbacks lets interaction modes customize how turn events are
// handled. Any callback may be nil.
type ProcessCallbacks struct {
	// OnAssistantText receives incremental text deltas.
	OnAssistantText func(text string)
	// OnThought receives incremental thought deltas.
	OnThought func(text string)
	// OnToolCall fires when a tool call is fully materialized.
	OnToolCall func(toolCall session.ToolCall)
	// OnToolResult fires after a tool executed.
	OnToolResult func(toolCall session.ToolCall, result string)
	// OnClarify blocks for the user's answer to a clarifying question.
	// Returning an error means the user cancelled.
	OnClarify func(question string) (string, error)
	// ShouldExecuteTool can veto a tool execution. A veto produces a
	// tool output explaining the refusal; the turn continues.
	ShouldExecuteTool func(toolCall session.ToolCall) bool
	// OnCompaction fires when the pre-turn check compacts the history.
	OnCompaction func(summary string)
	// OnWarning receives non-fatal problems.
	OnWarning func(warning string)
}

func (cb *ProcessCallbacks) warn(format string, a ...interface{}) {
	if cb.OnWarning != nil {
		cb.OnWarning(fmt.Sprintf(format, a...))
	}
}

// Agent owns one conversation and drives turns against the model.
type Agent struct {
	Config   *config.Config
	Session  *session.Session
	Client   llm.Client
	Registry *tools.Registry

	// tokenCount is the running context estimate: provider-reported
	// after turns that carry usage, estimated otherwise.
	tokenCount    int
	usageReported bool

	// pendingGuidance is injected into the next user message, e.g. the
	// voice mode announcement.
	pendingGuidance []string
}

func New(cfg *config.Config, sess *session.Session, registry *tools.Registry, client llm.Client) *Agent {
	return &Agent{
		Config:   cfg,
		Session:  sess,
		Client:   client,
		Registry: registry,
	}
}

// TokenCount returns the running token estimate for the conversation.
func (a *Agent) TokenCount() int {
	return a.tokenCount
}

// UsageReported reports whether the current count came from the
// provider rather than the local estimator.
func (a *Agent) UsageReported() bool {
	return a.usageReported
}

// QueueGuidance schedules a guidance note to ride along with the next
// user message.
func (a *Agent) QueueGuidance(text string) {
	a.pendingGuidance = append(a.pendingGuidance, text)
}

// SetVoiceMode toggles spoken output: it gates the speak tool and
// queues guidance telling the model how to behave.
func (a *Agent) SetVoiceMode(on bool) {
	a.Registry.SetVoiceMode(on)
	if on {
		a.QueueGuidance("Voice mode is now enabled. Use the speak tool to read your responses aloud, keeping spoken text short and conversational.")
	} else {
		a.QueueGuidance("Voice mode is now disabled. Do not use the speak tool.")
	}
}

// VoiceMode reports whether voice mode is active.
func (a *Agent) VoiceMode() bool {
	return a.Registry.VoiceMode()
}

// ProcessUserInput drives exactly one user turn to completion. A
// user-initiated interrupt (context cancellation) is a first-class
// terminal state, not an error: the method returns nil and the session
// holds whatever finalized before the interrupt.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	if a.shouldCompact() {
		summary, err := a.Compact(ctx, true)
		if err != nil {
			callbacks.warn("auto-compaction failed: %v", err)
		} else if callbacks.OnCompaction != nil {
			callbacks.OnCompaction(summary)
		}
	}

	a.Session.AddMessage(session.Message{
		Role:    "user",
		Content: a.composeUserContent(userInput),
	})

	a.usageReported = false

	for {
		result, err := a.streamOnce(ctx, callbacks)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				a.adoptInterrupted(result)
				break
			}
			return err
		}

		a.Session.AddMessage(*result.Message)
		a.trackUsage(result.Usage)

		if len(result.Message.ToolCalls) == 0 {
			break
		}

		clarifyOutputs, toolOutputs, dispatchErr := a.dispatchTools(ctx, result.Message.ToolCalls, callbacks)
		if dispatchErr != nil {
			// Interrupted mid-dispatch. The assistant message with its
			// calls is already in the history, so every call still needs
			// an output or the next request would carry dangling calls.
			toolOutputs = fillInterrupted(result.Message.ToolCalls, clarifyOutputs, toolOutputs)
			appendOutputs(a.Session, clarifyOutputs, toolOutputs)
			break
		}

		appendOutputs(a.Session, clarifyOutputs, toolOutputs)
	}

	// Interrupted turns still grew the history, so the count must be
	// refreshed for the usage bar and the next compaction check.
	if !a.usageReported {
		a.tokenCount = tokens.EstimateMessages(a.Session.Messages)
	}

	if err := a.Session.Save(); err != nil {
		callbacks.warn("failed to save session: %v", err)
	}
	return nil
}

// composeUserContent prefixes any pending guidance onto the user input
// so the turn still grows the history by exactly one user message.
func (a *Agent) composeUserContent(userInput string) string {
	if len(a.pendingGuidance) == 0 {
		return userInput
	}
	guidance := strings.Join(a.pendingGuidance, "\n")
	a.pendingGuidance = nil
	return guidance + "\n\n" + userInput
}

// streamOnce performs one streaming pass, wiring stream events to the
// callbacks.
func (a *Agent) streamOnce(ctx context.Context, callbacks ProcessCallbacks) (*llm.Result, error) {
	onEvent := func(ev llm.StreamEvent) {
		switch ev.Kind {
		case llm.EventText:
			if callbacks.OnAssistantText != nil {
				callbacks.OnAssistantText(ev.Text)
			}
		case llm.EventThought:
			if callbacks.OnThought != nil {
				callbacks.OnThought(ev.Text)
			}
		case llm.EventToolCall:
			if callbacks.OnToolCall != nil {
				callbacks.OnToolCall(*ev.ToolCall)
			}
		}
	}

	return a.Client.Stream(ctx, a.Session.Messages, a.Registry.Active(), onEvent)
}

// adoptInterrupted adopts whatever partial message the stream exposed,
// or appends a placeholder when nothing materialized.
func (a *Agent) adoptInterrupted(result *llm.Result) {
	if result != nil && result.Message != nil &&
		(result.Message.Content != "" || result.Message.Thought != "" || len(result.Message.ToolCalls) > 0) {
		// Drop the calls: an interrupted turn dispatches no tools, and
		// dangling calls without outputs would poison the next request.
		partial := *result.Message
		partial.ToolCalls = nil
		if partial.Content == "" {
			partial.Content = InterruptedPlaceholder
		}
		a.Session.AddMessage(partial)
		return
	}
	a.Session.AddMessage(session.Message{Role: "assistant", Content: InterruptedPlaceholder})
}

// appendOutputs appends one batch's outputs to the history.
// Clarification results take resumption priority: they go first so the
// model sees the user's answer before any generic tool output from the
// same batch.
func appendOutputs(sess *session.Session, clarifyOutputs, toolOutputs []session.ToolOutput) {
	for _, out := range clarifyOutputs {
		sess.AddMessage(session.ToolMessage(out))
	}
	for _, out := range toolOutputs {
		sess.AddMessage(session.ToolMessage(out))
	}
}

// fillInterrupted synthesizes outputs for the calls an interrupted
// dispatch never reached, preserving the one-output-per-call invariant.
func fillInterrupted(calls []session.ToolCall, clarifyOutputs, toolOutputs []session.ToolOutput) []session.ToolOutput {
	resolved := make(map[string]bool, len(clarifyOutputs)+len(toolOutputs))
	for _, out := range clarifyOutputs {
		resolved[out.ToolCallID] = true
	}
	for _, out := range toolOutputs {
		resolved[out.ToolCallID] = true
	}
	for _, call := range calls {
		if resolved[call.ToolCallID] {
			continue
		}
		toolOutputs = append(toolOutputs, session.ToolOutput{
			ToolCallID: call.ToolCallID,
			Name:       call.Name,
			Result:     "Tool execution interrupted by user.",
		})
	}
	return toolOutputs
}

// dispatchTools executes one batch of tool calls in emission order and
// returns clarification outputs separately from generic outputs. The
// returned error is non-nil only for interruption; outputs collected
// before the interrupt are still returned.
func (a *Agent) dispatchTools(ctx context.Context, calls []session.ToolCall, callbacks ProcessCallbacks) (clarifyOutputs, toolOutputs []session.ToolOutput, err error) {
	for _, call := range calls {
		if ctx.Err() != nil {
			return clarifyOutputs, toolOutputs, ctx.Err()
		}

		if call.Name == tools.ClarifyName {
			clarifyOutputs = append(clarifyOutputs, a.resolveClarify(call, callbacks))
			continue
		}

		output := session.ToolOutput{ToolCallID: call.ToolCallID, Name: call.Name}
		output.Result = a.executeTool(ctx, call, callbacks)

		if a.Config.LLM.SupportImage && call.Name == "screenshot" && !strings.HasPrefix(output.Result, "Error") {
			output.ImagePath = output.Result
			output.Result = fmt.Sprintf("Screenshot saved at: %s", output.Result)
		}

		if callbacks.OnToolResult != nil {
			callbacks.OnToolResult(call, output.Result)
		}
		toolOutputs = append(toolOutputs, output)
	}
	return clarifyOutputs, toolOutputs, nil
}

// resolveClarify blocks for the user's answer within the dispatch
// phase. Cancellation becomes a regular tool output, not an error.
func (a *Agent) resolveClarify(call session.ToolCall, callbacks ProcessCallbacks) session.ToolOutput {
	output := session.ToolOutput{ToolCallID: call.ToolCallID, Name: call.Name}

	question, _ := call.Args["question"].(string)
	if callbacks.OnClarify == nil {
		output.Result = "Clarification cancelled by user."
		return output
	}

	answer, err := callbacks.OnClarify(question)
	if err != nil {
		output.Result = "Clarification cancelled by user."
		return output
	}
	output.Result = fmt.Sprintf("User response: %s", answer)
	return output
}

// executeTool runs one generic tool call. Failures become human-readable
// result text; they never abort the turn.
func (a *Agent) executeTool(ctx context.Context, call session.ToolCall, callbacks ProcessCallbacks) string {
	if parseErr, ok := call.Args["_parse_error"].(string); ok {
		return fmt.Sprintf("Error: %s", parseErr)
	}

	if callbacks.ShouldExecuteTool != nil && !callbacks.ShouldExecuteTool(call) {
		return fmt.Sprintf("Tool execution of '%s' was declined by the user.", call.Name)
	}

	tool, ok := a.Registry.Get(call.Name)
	if !ok {
		return fmt.Sprintf("Error: tool '%s' is not available.", call.Name)
	}

	result, err := tool.Execute(ctx, call.Args)
	if err != nil {
		return fmt.Sprintf("Error executing tool '%s': %v", call.Name, err)
	}
	return result
}

// trackUsage prefers provider-reported token counts over the estimate.
func (a *Agent) trackUsage(usage *llm.Usage) {
	if usage == nil {
		return
	}
	a.tokenCount = usage.Total()
	a.usageReported = true
}
