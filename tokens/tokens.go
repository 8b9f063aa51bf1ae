// Package tokens estimates token counts for conversation histories and
// renders context-window usage for display. Counts are approximate and
// intended for budget comparisons, not billing.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/m4xw311/parley/session"
	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead is the approximate per-message cost of role and
// framing metadata.
const messageOverhead = 5

// toolCallOverhead covers the schema, id and argument framing of one
// tool call.
const toolCallOverhead = 100

var (
	encoder     *tiktoken.Tiktoken
	encoderOnce sync.Once
)

// cl100k_base covers the GPT-4 family and is close enough for budget
// checks against other providers.
func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		tk, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Estimation falls back to a length heuristic.
			return
		}
		encoder = tk
	})
	return encoder
}

// Estimate returns the approximate token count of a text string.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	if tk := getEncoder(); tk != nil {
		return len(tk.Encode(text, nil, nil))
	}
	// Fallback: ~4 characters per token for mostly-ASCII text, rounded up.
	return (len(text) + 3) / 4
}

// EstimateMessages returns the approximate total token count of a
// message history, including per-message formatting overhead.
func EstimateMessages(messages []session.Message) int {
	total := 0
	for _, msg := range messages {
		total += Estimate(msg.Content)
		total += Estimate(msg.Thought)
		total += len(msg.ToolCalls) * toolCallOverhead
	}
	total += len(messages) * messageOverhead
	return total
}

// ANSI colors for the usage bar.
const (
	colorGreen  = "\033[92m"
	colorYellow = "\033[93m"
	colorRed    = "\033[91m"
	colorReset  = "\033[0m"
)

const barLength = 30

// FormatUsage renders a token count against the context window as a
// colored bar, e.g. "1,234 / 128,000 tokens [█░░...] (1.0%)".
func FormatUsage(count, maxTokens int) string {
	if maxTokens <= 0 {
		return fmt.Sprintf("%s tokens", formatCount(count))
	}

	percentage := float64(count) / float64(maxTokens) * 100
	if percentage > 100 {
		percentage = 100
	}

	filled := barLength * count / maxTokens
	if filled > barLength {
		filled = barLength
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)

	color := colorGreen
	switch {
	case percentage >= 80:
		color = colorRed
	case percentage >= 50:
		color = colorYellow
	}

	return fmt.Sprintf("%s%s%s / %s tokens [%s] (%.1f%%)",
		color, formatCount(count), colorReset, formatCount(maxTokens), bar, percentage)
}

// formatCount formats an integer with comma separators.
func formatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		sb.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
