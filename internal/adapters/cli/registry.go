package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/mendbot/internal/config"
	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// AgentFactory creates an agent from configuration.
type AgentFactory func(cfg AgentConfig) (core.Agent, error)

// Registry manages available CLI agents.
type Registry struct {
	factories map[string]AgentFactory
	agents    map[string]core.Agent
	configs   map[string]AgentConfig
	logger    *logging.Logger
	mu        sync.RWMutex
}

// NewRegistry creates a new agent registry with the built-in factories.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]AgentFactory),
		agents:    make(map[string]core.Agent),
		configs:   make(map[string]AgentConfig),
	}
	r.RegisterFactory("claude", NewClaudeAdapter)
	r.RegisterFactory("codex", NewCodexAdapter)
	r.RegisterFactory("gemini", NewGeminiAdapter)
	r.RegisterFactory("command", NewCommandAdapter)
	return r
}

// RegisterFactory registers a factory for an agent type.
func (r *Registry) RegisterFactory(name string, factory AgentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Register adds an agent directly to the registry.
func (r *Registry) Register(name string, agent core.Agent) error {
	if agent == nil {
		return core.ErrValidation(core.CodeInvalidConfig, "cannot register nil agent "+name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = agent
	return nil
}

// Configure sets configuration for an agent and drops any cached instance.
func (r *Registry) Configure(name string, cfg AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	delete(r.agents, name)
}

// SetLogger sets the logger handed to agents created afterwards.
func (r *Registry) SetLogger(logger *logging.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Get returns an agent by name, creating it if necessary.
func (r *Registry) Get(name string) (core.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent, ok := r.agents[name]; ok {
		return agent, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, core.ErrValidation(core.CodeAgentNotFound,
			fmt.Sprintf("unknown agent %q (available: %v)", name, r.namesLocked()))
	}

	cfg, ok := r.configs[name]
	if !ok {
		cfg = AgentConfig{Name: name}
	}

	agent, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating agent %s: %w", name, err)
	}
	if r.logger != nil {
		if ls, ok := agent.(interface{ SetLogger(*logging.Logger) }); ok {
			ls.SetLogger(r.logger)
		}
	}

	r.agents[name] = agent
	return agent, nil
}

// List returns names of all known agents in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	seen := make(map[string]bool, len(r.factories)+len(r.agents))
	names := make([]string, 0, len(r.factories)+len(r.agents))
	for name := range r.factories {
		seen[name] = true
		names = append(names, name)
	}
	for name := range r.agents {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Has checks if an agent is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, factory := r.factories[name]
	_, agent := r.agents[name]
	return factory || agent
}

// Ping checks if an agent is available.
func (r *Registry) Ping(ctx context.Context, name string) error {
	agent, err := r.Get(name)
	if err != nil {
		return err
	}
	return agent.Ping(ctx)
}

// ConfigureFromConfig configures the selected agent from the loaded
// configuration, running it inside workDir.
func (r *Registry) ConfigureFromConfig(cfg *config.Config, workDir string) error {
	timeout, err := config.ParseDuration(cfg.Agent.Timeout)
	if err != nil {
		return core.ErrValidation(core.CodeInvalidConfig, "agent.timeout: "+err.Error())
	}
	r.Configure(cfg.Agent.Name, AgentConfig{
		Name:     cfg.Agent.Name,
		Path:     cfg.Agent.Path,
		Model:    cfg.Agent.Model,
		Args:     cfg.Agent.Args,
		Timeout:  timeout,
		WorkDir:  workDir,
		Continue: cfg.Agent.Continue,
	})
	return nil
}

var _ core.AgentRegistry = (*Registry)(nil)
