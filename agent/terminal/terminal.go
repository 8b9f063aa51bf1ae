package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/m4xw311/parley/agent"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/tokens"
	"github.com/m4xw311/parley/tools"
)

const border = 80

// Terminal handles the interactive CLI mode for the agent.
type Terminal struct {
	agent *agent.Agent

	in  io.Reader
	out io.Writer

	// buf is the single buffered reader over in. The main loop and the
	// clarify prompt must share it: a second buffered reader would lose
	// whatever the first one read ahead.
	buf *bufio.Reader

	// Tracks what kind of stream output was printed last so borders and
	// newlines land in the right places.
	streaming streamState
}

type streamState int

const (
	streamIdle streamState = iota
	streamText
	streamThought
)

// New creates a new Terminal instance reading stdin and writing stdout.
func New(a *agent.Agent) *Terminal {
	return &Terminal{
		agent: a,
		in:    os.Stdin,
		out:   os.Stdout,
	}
}

// Run starts the interactive session loop. An initial prompt from the
// command line is processed before reading input.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		t.processTurn(ctx, initialPrompt)
	}

	for {
		fmt.Fprint(t.out, "You: ")
		line, err := t.readLine()
		if err != nil {
			if err == io.EOF {
				// EOF ends the session; a final unterminated line is
				// still processed below.
				if strings.TrimSpace(line) == "" {
					return nil
				}
			} else {
				return err
			}
		}

		userInput := strings.TrimSpace(line)
		if userInput == "" {
			continue
		}

		if strings.HasPrefix(userInput, "/") {
			if quit := t.handleCommand(ctx, userInput); quit {
				break
			}
			continue
		}

		t.processTurn(ctx, userInput)

		if err == io.EOF {
			return nil
		}
	}

	return nil
}

// readLine reads one line from the shared buffered reader.
func (t *Terminal) readLine() (string, error) {
	if t.buf == nil {
		t.buf = bufio.NewReader(t.in)
	}
	return t.buf.ReadString('\n')
}

// handleCommand dispatches a slash command. It returns true when the
// session should end.
func (t *Terminal) handleCommand(ctx context.Context, command string) bool {
	switch command {
	case "/quit", "/exit", "/q":
		return true

	case "/reset":
		t.agent.Session.Reset()
		if err := t.agent.Session.Save(); err != nil {
			fmt.Fprintf(t.out, "Warning: failed to save session: %v\n", err)
		}
		fmt.Fprintln(t.out, "Conversation reset.")

	case "/compact":
		summary, err := t.agent.Compact(ctx, false)
		if err != nil {
			fmt.Fprintf(t.out, "Compaction failed: %v\n", err)
			return false
		}
		fmt.Fprintf(t.out, "Conversation compacted. Summary:\n%s\n", summary)

	case "/voice":
		if t.agent.VoiceMode() {
			t.agent.SetVoiceMode(false)
			fmt.Fprintln(t.out, "Voice mode disabled.")
			return false
		}
		if !tools.VoiceAvailable() {
			fmt.Fprintln(t.out, "Voice mode unavailable: no speech command found (tried 'say' and 'espeak').")
			return false
		}
		t.agent.SetVoiceMode(true)
		fmt.Fprintln(t.out, "Voice mode enabled.")

	default:
		fmt.Fprintf(t.out, "Unknown command: %s\n", command)
	}
	return false
}

// processTurn drives a single user turn. Ctrl-C during the turn cancels
// the turn's context, which the agent treats as an interrupt rather
// than an error.
func (t *Terminal) processTurn(ctx context.Context, userInput string) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(t.out, "\n[Interrupting...]")
			cancel()
		case <-turnCtx.Done():
		}
	}()

	if err := t.agent.ProcessUserInput(turnCtx, userInput, t.callbacks()); err != nil {
		t.closeStream()
		fmt.Fprintf(t.out, "Error: %v\n", err)
		return
	}
	t.closeStream()
	fmt.Fprintf(t.out, "[%s]\n", tokens.FormatUsage(t.agent.TokenCount(), t.agent.Config.ContextLimit()))
}

func (t *Terminal) callbacks() agent.ProcessCallbacks {
	return agent.ProcessCallbacks{
		OnAssistantText: func(chunk string) {
			if t.streaming == streamThought {
				t.closeStream()
			}
			if t.streaming == streamIdle {
				fmt.Fprint(t.out, "Parley: ")
				t.streaming = streamText
			}
			fmt.Fprint(t.out, chunk)
		},
		OnThought: func(chunk string) {
			if t.streaming == streamText {
				t.closeStream()
			}
			if t.streaming == streamIdle {
				fmt.Fprintln(t.out, strings.Repeat("~", border))
				t.streaming = streamThought
			}
			fmt.Fprint(t.out, chunk)
		},
		OnToolCall: func(call session.ToolCall) {
			t.closeStream()
			fmt.Fprintln(t.out, strings.Repeat("=", border))
			fmt.Fprintf(t.out, "Tool call: %s\n", call.Name)
			for key, value := range call.Args {
				if strings.HasPrefix(key, "_") {
					continue
				}
				fmt.Fprintf(t.out, "  %s: %v\n", key, value)
			}
			fmt.Fprintln(t.out, strings.Repeat("=", border))
		},
		OnToolResult: func(call session.ToolCall, result string) {
			fmt.Fprintf(t.out, "Tool `%s` output: %s\n", call.Name, truncateResult(result))
		},
		OnClarify: func(question string) (string, error) {
			t.closeStream()
			fmt.Fprintf(t.out, "Parley asks: %s\n", question)
			fmt.Fprint(t.out, "Your response: ")
			answer, err := t.readLine()
			if err != nil && strings.TrimSpace(answer) == "" {
				return "", err
			}
			return strings.TrimSpace(answer), nil
		},
		OnCompaction: func(summary string) {
			fmt.Fprintln(t.out, "[Conversation auto-compacted to free context]")
		},
		OnWarning: func(warning string) {
			fmt.Fprintf(t.out, "Warning: %s\n", warning)
		},
	}
}

// closeStream terminates any open streaming block: a newline after
// text, a closing border after thoughts.
func (t *Terminal) closeStream() {
	switch t.streaming {
	case streamText:
		fmt.Fprintln(t.out)
	case streamThought:
		fmt.Fprintln(t.out)
		fmt.Fprintln(t.out, strings.Repeat("~", border))
	}
	t.streaming = streamIdle
}

func truncateResult(result string) string {
	const max = 500
	if len(result) <= max {
		return result
	}
	return result[:max] + "... (truncated)"
}
