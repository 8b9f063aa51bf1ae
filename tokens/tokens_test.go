package tokens

import (
	"strings"
	"testing"

	"github.com/m4xw311/parley/session"
)

func TestEstimateEmpty(t *testing.T) {
	if got := Estimate(""); got != 0 {
		t.Errorf("Expected 0 tokens for empty string, got %d", got)
	}
}

func TestEstimateGrowsWithText(t *testing.T) {
	short := Estimate("hello")
	long := Estimate(strings.Repeat("hello world ", 100))
	if short <= 0 {
		t.Errorf("Expected positive count for short text, got %d", short)
	}
	if long <= short {
		t.Errorf("Expected longer text to count more tokens: short=%d long=%d", short, long)
	}
}

func TestEstimateMessages(t *testing.T) {
	messages := []session.Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "hello"},
	}

	total := EstimateMessages(messages)
	contentOnly := Estimate(messages[0].Content) + Estimate(messages[1].Content)

	// Per-message overhead must be included.
	if total != contentOnly+2*messageOverhead {
		t.Errorf("Expected %d (content %d + overhead), got %d", contentOnly+2*messageOverhead, contentOnly, total)
	}
}

func TestEstimateMessagesToolCallOverhead(t *testing.T) {
	withCall := []session.Message{
		{
			Role: "assistant",
			ToolCalls: []session.ToolCall{
				{ToolCallID: "call_1", Name: "file_read"},
			},
		},
	}
	without := []session.Message{{Role: "assistant"}}

	diff := EstimateMessages(withCall) - EstimateMessages(without)
	if diff != toolCallOverhead {
		t.Errorf("Expected tool call overhead %d, got %d", toolCallOverhead, diff)
	}
}

func TestFormatUsage(t *testing.T) {
	out := FormatUsage(1234, 128000)
	if !strings.Contains(out, "1,234") {
		t.Errorf("Expected comma-formatted count in %q", out)
	}
	if !strings.Contains(out, "128,000") {
		t.Errorf("Expected comma-formatted max in %q", out)
	}
	if !strings.Contains(out, "%") {
		t.Errorf("Expected percentage in %q", out)
	}
}

func TestFormatUsageColorThresholds(t *testing.T) {
	testCases := []struct {
		name  string
		count int
		color string
	}{
		{"Green", 100, colorGreen},
		{"Yellow", 600, colorYellow},
		{"Red", 900, colorRed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := FormatUsage(tc.count, 1000)
			if !strings.HasPrefix(out, tc.color) {
				t.Errorf("Expected %s prefix for count %d, got %q", tc.name, tc.count, out)
			}
		})
	}
}

func TestFormatUsageOverflowClamps(t *testing.T) {
	out := FormatUsage(2000, 1000)
	if !strings.Contains(out, "(100.0%)") {
		t.Errorf("Expected clamped percentage, got %q", out)
	}
}

func TestFormatCount(t *testing.T) {
	testCases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{128000, "128,000"},
		{1234567, "1,234,567"},
	}
	for _, tc := range testCases {
		if got := formatCount(tc.in); got != tc.want {
			t.Errorf("formatCount(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
