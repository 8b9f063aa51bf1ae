// Package tools defines the agent's callable tools and the registry
// that exposes them to the model.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/parley/config"
	"github.com/m4xw311/parley/session"
	"github.com/m4xw311/parley/skills"
	"github.com/m4xw311/parley/tools/mcp"
)

// Tool defines the interface for any action the agent can take.
// Parameters returns a JSON Schema object describing the arguments.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry holds all available tools, filtered at lookup time by
// configuration and by the runtime voice mode flag.
type Registry struct {
	cfg        *config.Config
	tools      map[string]Tool
	order      []string // registration order, used for stable Active() output
	mcpClients map[string]*mcp.Client
	voiceMode  bool
}

// NewRegistry builds the registry with the built-in tools and any MCP
// servers from configuration. MCP server failures are reported, not fatal.
func NewRegistry(cfg *config.Config, idx *skills.Index, store *session.StateStore) *Registry {
	r := &Registry{
		cfg:        cfg,
		tools:      make(map[string]Tool),
		mcpClients: make(map[string]*mcp.Client),
	}

	r.Register(&FileCreateTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&FileReadTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&FileEditTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&ExecuteBashTool{allowedCommands: cfg.AllowedCommands, skills: idx})
	r.Register(&ScreenshotTool{})
	r.Register(NewBrowseTool())
	r.Register(&PlanTool{})
	r.Register(&ClarifyTool{})
	r.Register(&SpeakTool{})
	r.Register(&SetRestartStateTool{store: store})
	r.Register(&GetRestartStateTool{store: store})
	r.Register(&ClearRestartStateTool{store: store})
	r.Register(&RestartTool{store: store})
	r.Register(&ListSkillsTool{skills: idx})
	r.Register(&SkillInfoTool{skills: idx})

	for _, srv := range cfg.AdditionalMCPServers {
		client, err := mcp.NewClient(srv.Name, srv.Command, srv.Args)
		if err != nil {
			fmt.Printf("Warning: could not start MCP server '%s': %v\n", srv.Name, err)
			continue
		}
		r.mcpClients[srv.Name] = client
		for _, t := range client.Tools() {
			r.Register(t)
		}
	}

	return r
}

func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name if it is registered and enabled.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	if !ok || !r.enabled(name) {
		return nil, false
	}
	return t, ok
}

// SetVoiceMode toggles availability of the speak tool.
func (r *Registry) SetVoiceMode(on bool) {
	r.voiceMode = on
}

// VoiceMode reports the current voice mode flag.
func (r *Registry) VoiceMode() bool {
	return r.voiceMode
}

// enabled applies the config gate, plus the runtime voice gate for the
// speak tool.
func (r *Registry) enabled(name string) bool {
	if name == "speak" && !r.voiceMode {
		return false
	}
	return r.cfg.ToolEnabled(name)
}

// Active returns the enabled tools in registration order. This is the
// set offered to the model each turn.
func (r *Registry) Active() []Tool {
	var active []Tool
	for _, name := range r.order {
		if r.enabled(name) {
			active = append(active, r.tools[name])
		}
	}
	return active
}

// Stop shuts down any MCP server subprocesses.
func (r *Registry) Stop() {
	for _, client := range r.mcpClients {
		if err := client.Stop(); err != nil {
			fmt.Printf("Warning: could not stop MCP server '%s': %v\n", client.Name, err)
		}
	}
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// isCommandAllowed checks if a command is in the allowlist (with regex support).
func isCommandAllowed(command string, allowed []string) (bool, error) {
	cmdParts := strings.Fields(command)
	if len(cmdParts) == 0 {
		return false, nil
	}

	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			fmt.Printf("Warning: Invalid regex in allowed_commands '%s': %v\n", pattern, err)
			// Fallback to simple string comparison if regex is invalid
			if command == pattern {
				return true, nil
			}
			continue
		}
		if re.MatchString(command) {
			return true, nil
		}
	}
	return false, nil
}

// stringArg extracts a required string argument.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}
