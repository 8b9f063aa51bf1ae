package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ToolCall is a structured request from the model to execute a tool.
type ToolCall struct {
	ToolCallID string                 `json:"tool_call_id"`
	Name       string                 `json:"name"`
	Args       map[string]interface{} `json:"args,omitempty"`
}

// ToolOutput is the result of executing a ToolCall. ToolCallID matches
// the originating call; ImagePath points at a generated artifact (e.g.
// a screenshot) when the tool produced one.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Result     string `json:"result"`
	ImagePath  string `json:"image_path,omitempty"`
}

// Message is one entry in the conversation history.
type Message struct {
	Role      string     `json:"role"` // "system", "user", "assistant", "tool"
	Content   string     `json:"content"`
	Thought   string     `json:"thought,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Images    []string   `json:"images,omitempty"` // file paths attached to the message
}

// ToolMessage builds the tool-role message carrying one tool output.
// The single ToolCall entry associates the result back to its call.
func ToolMessage(out ToolOutput) Message {
	msg := Message{
		Role:    "tool",
		Content: out.Result,
		ToolCalls: []ToolCall{
			{ToolCallID: out.ToolCallID, Name: out.Name},
		},
	}
	if out.ImagePath != "" {
		msg.Images = []string{out.ImagePath}
	}
	return msg
}

// Session is the in-memory ordered conversation, persisted to disk
// after each turn. The first message is always the system prompt.
type Session struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
	path     string
}

// New creates a new session seeded with the system prompt.
func New(name, systemPrompt string) (*Session, error) {
	path, err := getSessionPath(name)
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:     name,
		Messages: []Message{{Role: "system", Content: systemPrompt}},
		path:     path,
	}, nil
}

// Load loads an existing session from disk.
func Load(name string) (*Session, error) {
	path, err := getSessionPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read session file %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("could not parse session file %s: %w", path, err)
	}
	s.path = path
	return &s, nil
}

// Save writes the current session state to disk.
func (s *Session) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// SystemPrompt returns the system prompt, which is always the first
// message in the history.
func (s *Session) SystemPrompt() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].Content
}

// SetSystemPrompt replaces the system prompt in place, preserving the
// rest of the history. Used when a loaded session needs the freshly
// assembled prompt.
func (s *Session) SetSystemPrompt(prompt string) {
	if len(s.Messages) == 0 {
		s.Messages = []Message{{Role: "system", Content: prompt}}
		return
	}
	s.Messages[0] = Message{Role: "system", Content: prompt}
}

// Reset discards all history except the system prompt.
func (s *Session) Reset() {
	s.Messages = []Message{{Role: "system", Content: s.SystemPrompt()}}
}

// Replace swaps the entire history. Compaction uses this to install the
// system prompt plus summary message pair.
func (s *Session) Replace(messages []Message) {
	s.Messages = messages
}

func getSessionPath(name string) (string, error) {
	sessionDir := filepath.Join(".parley", "sessions")
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return "", fmt.Errorf("could not create session directory: %w", err)
	}
	return filepath.Join(sessionDir, fmt.Sprintf("%s.json", name)), nil
}
