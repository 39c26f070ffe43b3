// Package agent answers free-text questions about NSE stocks. A classifier
// routes each query to the single-stock analyst or the comparison analyst,
// and each analyst runs a bounded tool-calling loop over the data tools.
package agent

import (
	"context"
	"time"

	"github.com/seenimoa/stockai/internal/llm"
)

// ── Agent Interface ──

// Agent is an LLM persona with a fixed system prompt and tool subset.
type Agent interface {
	// Name returns the agent's identifier (e.g., "stock_analyst").
	Name() string

	// Role returns a human-readable description of the agent's role.
	Role() string

	// Tools returns the tools this agent may call.
	Tools() []llm.Tool

	// Process runs one task in a fresh conversation.
	Process(ctx context.Context, task string) (*AgentResult, error)
}

// ── AgentResult ──

// AgentResult is the outcome of one agent run.
type AgentResult struct {
	AgentName  string               `json:"agentName"`
	Content    string               `json:"content"`
	Iterations int                  `json:"iterations"`
	Stopped    bool                 `json:"stopped"`
	ToolCalls  []llm.ToolCallRecord `json:"toolCalls"`
	Usage      llm.Usage            `json:"usage"`
	Duration   time.Duration        `json:"duration"`
}

// ── BaseAgent ──

// BaseAgent runs llm.RunToolLoop with a system prompt and a subset of the
// shared tool registry.
type BaseAgent struct {
	name         string
	role         string
	systemPrompt string
	tools        []llm.Tool
	registry     *llm.ToolRegistry
	provider     llm.Provider
	opts         *llm.ChatOptions
	maxToolIter  int
	timeout      time.Duration
}

// BaseAgentConfig configures a BaseAgent.
type BaseAgentConfig struct {
	Name         string
	Role         string
	SystemPrompt string
	Provider     llm.Provider
	Registry     *llm.ToolRegistry
	ToolNames    []string
	ChatOptions  *llm.ChatOptions
	MaxToolIter  int
	Timeout      time.Duration // zero means no deadline beyond the caller's
}

// NewBaseAgent creates a BaseAgent. Tool names missing from the registry are
// ignored.
func NewBaseAgent(cfg BaseAgentConfig) *BaseAgent {
	if cfg.MaxToolIter <= 0 {
		cfg.MaxToolIter = llm.DefaultMaxIterations
	}
	if cfg.Registry == nil {
		cfg.Registry = llm.NewToolRegistry()
	}

	return &BaseAgent{
		name:         cfg.Name,
		role:         cfg.Role,
		systemPrompt: cfg.SystemPrompt,
		tools:        cfg.Registry.Subset(cfg.ToolNames...),
		registry:     cfg.Registry,
		provider:     cfg.Provider,
		opts:         cfg.ChatOptions,
		maxToolIter:  cfg.MaxToolIter,
		timeout:      cfg.Timeout,
	}
}

// Name returns the agent's identifier.
func (a *BaseAgent) Name() string { return a.name }

// Role returns the agent's role description.
func (a *BaseAgent) Role() string { return a.role }

// Tools returns the agent's available tools.
func (a *BaseAgent) Tools() []llm.Tool { return a.tools }

// MaxIterations returns the model-turn cap of the agent's loop.
func (a *BaseAgent) MaxIterations() int { return a.maxToolIter }

// Process runs the task in a fresh conversation (system prompt + user
// message). A model failure is returned as an *llm.ChatError together with
// the partial result.
func (a *BaseAgent) Process(ctx context.Context, task string) (*AgentResult, error) {
	start := time.Now()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	messages := []llm.Message{
		llm.SystemMessage(a.systemPrompt),
		llm.UserMessage(task),
	}
	lr, err := llm.RunToolLoop(ctx, a.provider, a.registry, messages, llm.LoopConfig{
		MaxIterations: a.maxToolIter,
		Tools:         a.tools,
		Options:       a.opts,
	})

	result := &AgentResult{AgentName: a.name, Duration: time.Since(start)}
	if lr != nil {
		result.Content = lr.Answer
		result.Iterations = lr.Iterations
		result.Stopped = lr.Stopped
		result.ToolCalls = lr.ToolCalls
		result.Usage = lr.Usage
	}
	return result, err
}
