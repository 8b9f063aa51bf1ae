package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m4xw311/parley/agent"
	"github.com/m4xw311/parley/agent/terminal"
	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/llm"
	"github.com/m4xw311/parley/prompt"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/skills"
	"github.com/m4xw311/parley/tools"
)

const (
	skillsDir = ".parley/skills"
	statePath = ".parley/state.json"
)

func main() {
	sessionFlag := flag.String("s", "", "Session name to create or use")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	voiceFlag := flag.Bool("voice", false, "Start with voice mode enabled")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	if *debugFlag {
		cfg.Debug = true
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	idx, err := skills.Load(skillsDir, cfg.SkillEnabled)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading skills: %+v\n", err)
		os.Exit(1)
	}
	slog.Debug("skills loaded", "count", idx.Len())

	systemPrompt, err := prompt.Assemble(prompt.DefaultDir, cfg, idx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error assembling system prompt: %+v\n", err)
		os.Exit(1)
	}

	var sess *session.Session
	sessionName := *sessionFlag

	if *resumeFlag != "" {
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		// The prompt fragments may have changed since the session was
		// created; the resumed conversation picks up the current ones.
		sess.SetSystemPrompt(systemPrompt)
		fmt.Printf("Resuming session: %s\n", sessionName)
	} else {
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName, systemPrompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Starting new session: %s\n", sessionName)
	}

	client, err := newClient(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.LLM.Provider, err)
		os.Exit(1)
	}

	store := session.NewStateStore(statePath)
	registry := tools.NewRegistry(cfg, idx, store)
	defer registry.Stop()

	parleyAgent := agent.New(cfg, sess, registry, client)
	if *voiceFlag {
		if !tools.VoiceAvailable() {
			fmt.Fprintln(os.Stderr, "Voice mode unavailable: no speech command found (tried 'say' and 'espeak').")
		} else {
			parleyAgent.SetVoiceMode(true)
		}
	}

	initialPrompt := strings.Join(flag.Args(), " ")
	if initialPrompt == "" {
		initialPrompt = consumeRestartInstruction(store)
	}

	fmt.Println("Parley is ready. Type your prompt.")
	term := terminal.New(parleyAgent)
	if err := term.Run(context.Background(), initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}

// newClient selects the provider from configuration. Unknown providers
// fall back to the mock client, which is useful for offline testing.
func newClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(ctx, &cfg.LLM)
	case "openai":
		return llm.NewOpenAIClient(ctx, &cfg.LLM)
	case "gemini":
		return llm.NewGeminiClient(ctx, &cfg.LLM)
	case "bedrock":
		return llm.NewBedrockClient(ctx, &cfg.LLM)
	default:
		slog.Warn("unknown provider, using mock client", "provider", cfg.LLM.Provider)
		return llm.NewMockClient(), nil
	}
}

// consumeRestartInstruction returns the instruction a previous process
// stored before calling restart_cli, clearing it so it runs only once.
func consumeRestartInstruction(store *session.StateStore) string {
	value, ok, err := store.Get(tools.RestartInstructionKey)
	if err != nil || !ok {
		return ""
	}
	if err := store.Delete(tools.RestartInstructionKey); err != nil {
		slog.Warn("failed to clear restart instruction", "error", err)
	}
	instruction, _ := value.(string)
	if instruction != "" {
		fmt.Printf("Resuming after restart with instruction: %s\n", instruction)
	}
	return instruction
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "parley"
	}
	dirName := filepath.Base(wd)
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s", dirName, timestamp)
}
