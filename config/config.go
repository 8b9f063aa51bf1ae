package config

import (
	"os"
	"path/filepath"

	"github.com/m4xw311/parley/errors"
	"gopkg.in/yaml.v3"
)

// Thinking controls extended-reasoning behavior for providers that
// support it.
type Thinking struct {
	Level           string `yaml:"level"`
	IncludeThoughts bool   `yaml:"include_thoughts"`
}

// LLM holds the model connection and capability settings.
type LLM struct {
	Provider            string   `yaml:"provider"`
	ModelName           string   `yaml:"model_name"`
	APIBase             string   `yaml:"api_base"`
	MaxCompletionTokens int      `yaml:"max_completion_tokens"`
	ContextSize         int      `yaml:"context_size"`
	SupportImage        bool     `yaml:"support_image"`
	Thinking            Thinking `yaml:"thinking"`
}

type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Config struct {
	LLM                    LLM              `yaml:"llm"`
	Tools                  map[string]bool  `yaml:"tools"`
	Skills                 map[string]bool  `yaml:"skills"`
	ContextLimitPercentage float64          `yaml:"context_limit_percentage"`
	Debug                  bool             `yaml:"debug"`
	AllowedCommands        []string         `yaml:"allowed_commands"`
	FilesystemAccess       FilesystemAccess `yaml:"filesystem_access"`
	AdditionalMCPServers   []MCPServer      `yaml:"additional_mcp_servers"`
}

// Default returns a configuration populated with documented defaults.
// Loading merges YAML on top of these values.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider:            "openai",
			ModelName:           "gpt-4",
			MaxCompletionTokens: 8192,
			ContextSize:         128000,
		},
		ContextLimitPercentage: 0.8,
		FilesystemAccess: FilesystemAccess{
			// Keep the agent out of its own state directory.
			Hidden: []string{".parley", ".parley/**"},
		},
	}
}

// LoadConfig loads configuration from the user's home directory and the
// current working directory, with the latter taking precedence. Missing
// files are fine; the defaults stand on their own.
func LoadConfig() (*Config, error) {
	cfg := Default()

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".parley", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".parley", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML. This provides a
	// simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration once at load time so that access
// sites never have to defend against bad values.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai", "gemini", "bedrock", "mock":
	default:
		return errors.New("unknown llm.provider '%s' (expected anthropic, openai, gemini, bedrock or mock)", c.LLM.Provider)
	}
	if c.LLM.ModelName == "" {
		return errors.New("llm.model_name must be set")
	}
	if c.LLM.ContextSize <= 0 {
		return errors.New("llm.context_size must be positive, got %d", c.LLM.ContextSize)
	}
	if c.LLM.MaxCompletionTokens <= 0 {
		return errors.New("llm.max_completion_tokens must be positive, got %d", c.LLM.MaxCompletionTokens)
	}
	if c.ContextLimitPercentage <= 0 || c.ContextLimitPercentage > 1 {
		return errors.New("context_limit_percentage must be in (0, 1], got %g", c.ContextLimitPercentage)
	}
	return nil
}

// ToolEnabled reports whether a tool is enabled. Absence of a key means
// enabled.
func (c *Config) ToolEnabled(name string) bool {
	if c.Tools == nil {
		return true
	}
	enabled, ok := c.Tools[name]
	if !ok {
		return true
	}
	return enabled
}

// SkillEnabled reports whether a skill is enabled. Absence of a key
// means enabled.
func (c *Config) SkillEnabled(name string) bool {
	if c.Skills == nil {
		return true
	}
	enabled, ok := c.Skills[name]
	if !ok {
		return true
	}
	return enabled
}

// ContextLimit returns the token budget: context window size scaled by
// the configured limit fraction.
func (c *Config) ContextLimit() int {
	return int(float64(c.LLM.ContextSize) * c.ContextLimitPercentage)
}
