package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tokens"
)

const summarizerInstructions = `You are an expert conversation summarizer. Your task is to summarize the following conversation history into a concise, informative summary that preserves all important context, decisions, and progress.

IMPORTANT: The summary should be written in a way that allows the assistant to "come back" to the initial state by preserving:
1. Key facts and decisions made
2. User preferences and requirements
3. Progress on tasks or goals
4. Important context about the project or topic
5. Any pending actions or follow-ups

Format your response as a well-structured summary that can be provided as context in a new conversation.

Conversation history:
`

// shouldCompact checks the running token count against the configured
// budget before a turn starts.
func (a *Agent) shouldCompact() bool {
	count := a.tokenCount
	if count == 0 {
		count = tokens.EstimateMessages(a.Session.Messages)
	}
	return count >= a.Config.ContextLimit()
}

// Compact summarizes the conversation and replaces the history with the
// system prompt plus one synthetic user message carrying the summary.
// The summarization call is a dedicated, non-tool model invocation. A
// failed summarization falls back to a placeholder so compaction always
// frees the context window.
func (a *Agent) Compact(ctx context.Context, auto bool) (string, error) {
	summary := a.summarize(ctx)

	framing := "Previous conversation compacted."
	if auto {
		framing = "Previous conversation auto-compacted."
	}

	a.Session.Replace([]session.Message{
		{Role: "system", Content: a.Session.SystemPrompt()},
		{Role: "user", Content: fmt.Sprintf(
			"%s Here's a summary of what we've discussed so far:\n\n%s\n\nYou can now continue the conversation from this point.",
			framing, summary)},
	})

	a.tokenCount = tokens.EstimateMessages(a.Session.Messages)
	a.usageReported = false

	if err := a.Session.Save(); err != nil {
		return summary, err
	}
	return summary, nil
}

// summarize asks the model for a transcript summary, with no tools
// offered. Errors degrade to a placeholder naming the message count.
func (a *Agent) summarize(ctx context.Context) string {
	prompt := buildSummaryPrompt(a.Session.Messages)

	result, err := a.Client.Stream(ctx, []session.Message{
		{Role: "user", Content: prompt},
	}, nil, nil)
	if err != nil {
		return fmt.Sprintf(
			"Conversation compacted. Original conversation had %d messages. Summary could not be generated due to error: %v",
			len(a.Session.Messages), err)
	}

	summary := strings.TrimSpace(result.Message.Content)
	if summary == "" {
		return fmt.Sprintf("Conversation compacted. Original conversation had %d messages.", len(a.Session.Messages))
	}
	return summary
}

// buildSummaryPrompt renders the transcript into the summarizer prompt.
func buildSummaryPrompt(messages []session.Message) string {
	var sb strings.Builder
	sb.WriteString(summarizerInstructions)

	for _, msg := range messages {
		sb.WriteString(strings.ToUpper(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
		for _, tc := range msg.ToolCalls {
			if msg.Role == "assistant" {
				sb.WriteString(fmt.Sprintf("(called tool %s)\n", tc.Name))
			}
		}
	}

	sb.WriteString("\n\nPlease provide a comprehensive summary of this conversation:")
	return sb.String()
}
