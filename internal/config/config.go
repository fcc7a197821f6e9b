// Package config holds the plain Go structs the Agent Runner and
// Orchestrator are constructed from. Besides trivial os.Getenv lookups for
// API keys (FromEnv), the only format it reads is an optional YAML file
// (LoadFile) keyed by the yaml tags below — config parsing itself is an
// external-collaborator concern (spec §1/§6), so this package mainly gives
// that collaborator somewhere concrete to write into.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names a supported LLM adapter.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderMock      Provider = "mock"
)

// LLM configures which adapter to build and with what credentials.
type LLM struct {
	Provider     Provider `yaml:"provider"`
	APIKey       string   `yaml:"api_key"`
	DefaultModel string   `yaml:"default_model"`
}

// Agent mirrors agentrunner.Config's budget, timeout and parallelism fields
// as a serializable, file-loadable shape (it has no Model or sub-call
// fields); agentrunner itself still silently clamps whatever values flow
// through here.
type Agent struct {
	MaxIterations  int     `yaml:"max_iterations"`
	MaxDepth       int     `yaml:"max_depth"`
	TokenBudget    int     `yaml:"token_budget"`
	CostLimit      float64 `yaml:"cost_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	ToolBudget     int     `yaml:"tool_budget"`
	AutoContext    bool    `yaml:"auto_context"`
	ContextBudget  int     `yaml:"context_budget"`
	TrajectoryLog  bool    `yaml:"trajectory_log"`
	ParallelTools  bool    `yaml:"parallel_tools"`
	MaxParallel    int     `yaml:"max_parallel"`
}

// Session configures the Session Manager's LRU+TTL eviction.
type Session struct {
	Cap int           `yaml:"cap"`
	TTL time.Duration `yaml:"ttl"`
}

// Config is the top-level, file-loadable configuration shape.
type Config struct {
	LLM     LLM     `yaml:"llm"`
	Agent   Agent   `yaml:"agent"`
	Session Session `yaml:"session"`
}

// WithDefaults returns a Config pre-filled with conservative defaults,
// matching the teacher's DefaultRuntimeOptions pattern
// (internal/agent/options.go).
func WithDefaults() Config {
	return Config{
		LLM: LLM{Provider: ProviderMock, DefaultModel: "mock-default"},
		Agent: Agent{
			MaxIterations:  10,
			MaxDepth:       3,
			TokenBudget:    50_000,
			CostLimit:      1.00,
			TimeoutSeconds: 120,
			MaxParallel:    4,
		},
		Session: Session{Cap: 256, TTL: 30 * time.Minute},
	}
}

// FromEnv overlays API-key style secrets read from the environment onto cfg,
// following the teacher's own posture of never parsing structured
// configuration out of env vars — only single scalar lookups.
func FromEnv(cfg Config) Config {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
		cfg.LLM.Provider = ProviderAnthropic
		return cfg
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
		cfg.LLM.Provider = ProviderOpenAI
	}
	return cfg
}

// LoadFile reads a YAML configuration file and merges it onto base, using
// gopkg.in/yaml.v3 the same way the teacher's cmd/nexus-edge/config.go loads
// its own edge configuration. Only present fields in the file override
// base's.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, err
	}
	return cfg, nil
}
