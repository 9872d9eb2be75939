// Package config loads deepagent configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/deepagent/internal/findings"
	"github.com/fyrsmithlabs/deepagent/internal/llm"
	"github.com/fyrsmithlabs/deepagent/internal/logging"
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/planning"
	"github.com/fyrsmithlabs/deepagent/internal/secrets"
	"github.com/fyrsmithlabs/deepagent/internal/telemetry"
	"github.com/fyrsmithlabs/deepagent/internal/workflows"
)

// Config is the complete application configuration.
type Config struct {
	Agent     AgentConfig      `koanf:"agent"`
	LLM       LLMConfig        `koanf:"llm"`
	Server    ServerConfig     `koanf:"server"`
	NATS      NATSConfig       `koanf:"nats"`
	Temporal  TemporalConfig   `koanf:"temporal"`
	Findings  FindingsConfig   `koanf:"findings"`
	Secrets   secrets.Config   `koanf:"secrets"`
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// AgentConfig holds the orchestrator capability flags and limits.
type AgentConfig struct {
	EnablePlanning        bool     `koanf:"enable_planning"`
	EnableSubAgents       bool     `koanf:"enable_sub_agents"`
	EnableMemory          bool     `koanf:"enable_memory"`
	MaxSubAgents          int      `koanf:"max_sub_agents"`
	MaxIterations         int      `koanf:"max_iterations"`
	Verbose               bool     `koanf:"verbose"`
	DependencyPolicy      string   `koanf:"dependency_policy"`
	SubAgentMaxIterations int      `koanf:"sub_agent_max_iterations"`
	SubAgentTimeout       Duration `koanf:"sub_agent_timeout"`
}

// LLMConfig selects the text generator.
type LLMConfig struct {
	Provider    string   `koanf:"provider"`
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	RateLimit   float64  `koanf:"rate_limit"`
	Burst       int      `koanf:"burst"`
	MaxRetries  int      `koanf:"max_retries"`
	Backoff     Duration `koanf:"backoff"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NATSConfig configures event publishing.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Token         Secret `koanf:"token"`
}

// TemporalConfig routes sub-agent execution through Temporal workflows.
type TemporalConfig struct {
	Enabled   bool   `koanf:"enabled"`
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
	// Worker runs an in-process worker alongside the orchestrator.
	Worker bool `koanf:"worker"`
}

// FindingsConfig configures the semantic findings index.
type FindingsConfig struct {
	Enabled bool `koanf:"enabled"`
	// Embedder is "hash" (local, no network) or "openai".
	Embedder string `koanf:"embedder"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
}

const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
)

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	od := orchestrator.DefaultConfig()
	return &Config{
		Agent: AgentConfig{
			EnablePlanning:        od.EnablePlanning,
			EnableSubAgents:       od.EnableSubAgents,
			EnableMemory:          od.EnableMemory,
			MaxSubAgents:          od.MaxSubAgents,
			MaxIterations:         od.MaxIterations,
			DependencyPolicy:      od.DependencyPolicy.String(),
			SubAgentMaxIterations: od.SubAgentMaxIterations,
			SubAgentTimeout:       Duration(od.SubAgentTimeout),
		},
		LLM: LLMConfig{
			Provider:    llm.ProviderOpenAI,
			Temperature: 0.2,
			MaxRetries:  3,
			Backoff:     Duration(time.Second),
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "deepagent.events",
		},
		Temporal: TemporalConfig{
			HostPort:  "127.0.0.1:7233",
			Namespace: "default",
			TaskQueue: workflows.DefaultTaskQueue,
			Worker:    true,
		},
		Findings: FindingsConfig{
			Enabled:  true,
			Embedder: EmbedderHash,
		},
		Secrets:   *secrets.DefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	add("agent", c.Agent.validate())
	add("llm", c.LLM.validate())
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server", fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		add("nats", errors.New("url is required when enabled"))
	}
	if c.Temporal.Enabled && (c.Temporal.HostPort == "" || c.Temporal.TaskQueue == "") {
		add("temporal", errors.New("host_port and task_queue are required when enabled"))
	}
	switch c.Findings.Embedder {
	case EmbedderHash, EmbedderOpenAI:
	default:
		add("findings", fmt.Errorf("unknown embedder %q", c.Findings.Embedder))
	}
	add("logging", c.Logging.Validate())
	add("telemetry", c.Telemetry.Validate())

	return errors.Join(errs...)
}

func (a AgentConfig) validate() error {
	if a.MaxSubAgents < 1 {
		return fmt.Errorf("max_sub_agents must be >= 1, got %d", a.MaxSubAgents)
	}
	if a.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", a.MaxIterations)
	}
	if a.SubAgentMaxIterations < 1 {
		return fmt.Errorf("sub_agent_max_iterations must be >= 1, got %d", a.SubAgentMaxIterations)
	}
	if a.SubAgentTimeout <= 0 {
		return errors.New("sub_agent_timeout must be positive")
	}
	if _, err := planning.ParseDependencyPolicy(a.DependencyPolicy); err != nil {
		return err
	}
	return nil
}

func (l LLMConfig) validate() error {
	switch strings.ToLower(l.Provider) {
	case "", llm.ProviderOpenAI, llm.ProviderEcho:
	default:
		return fmt.Errorf("%w: %q", llm.ErrUnknownProvider, l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature %v outside [0, 2]", l.Temperature)
	}
	if l.RateLimit < 0 || l.MaxRetries < 0 {
		return errors.New("rate_limit and max_retries must not be negative")
	}
	return nil
}

// Orchestrator maps the agent section onto the orchestrator's config.
func (c *Config) Orchestrator() orchestrator.Config {
	policy, _ := planning.ParseDependencyPolicy(c.Agent.DependencyPolicy)
	return orchestrator.Config{
		EnablePlanning:        c.Agent.EnablePlanning,
		EnableSubAgents:       c.Agent.EnableSubAgents,
		EnableMemory:          c.Agent.EnableMemory,
		MaxSubAgents:          c.Agent.MaxSubAgents,
		MaxIterations:         c.Agent.MaxIterations,
		Verbose:               c.Agent.Verbose,
		DependencyPolicy:      policy,
		SubAgentMaxIterations: c.Agent.SubAgentMaxIterations,
		SubAgentTimeout:       c.Agent.SubAgentTimeout.Duration(),
	}
}

// Generator maps the llm section onto llm.Config.
func (c *Config) Generator() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		BaseURL:     c.LLM.BaseURL,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey.Value(),
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		RateLimit:   c.LLM.RateLimit,
		Burst:       c.LLM.Burst,
		MaxRetries:  c.LLM.MaxRetries,
		Backoff:     c.LLM.Backoff.Duration(),
	}
}

// Embedder maps the findings section onto an OpenAI embeddings config.
// Unset fields fall back to the llm section.
func (c *Config) Embedder() findings.OpenAIConfig {
	cfg := findings.OpenAIConfig{
		BaseURL: c.Findings.BaseURL,
		Model:   c.Findings.Model,
		APIKey:  c.Findings.APIKey.Value(),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = c.LLM.BaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = c.LLM.APIKey.Value()
	}
	return cfg
}
