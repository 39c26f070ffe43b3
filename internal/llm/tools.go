package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/metrics"
)

// Tool is a function the model can call.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
	Handler     ToolHandler `json:"-"`
}

// ToolHandler executes a tool call and returns its string payload.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// JSONSchema is the subset of JSON Schema used for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
}

// ObjectSchema creates a schema for an object with the given properties.
func ObjectSchema(desc string, props map[string]*JSONSchema, required ...string) *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: desc,
		Properties:  props,
		Required:    required,
	}
}

// StringProp creates a schema for a string property.
func StringProp(desc string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: desc}
}

// EnumProp creates a schema for a string enum property.
func EnumProp(desc string, values ...string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: desc, Enum: values}
}

// ArrayProp creates a schema for an array property.
func ArrayProp(desc string, items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: "array", Description: desc, Items: items}
}

// ToolRegistry holds the available tools and executes calls against them.
// A panicking handler is recovered and reported as an error result.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// RegistryOption configures a ToolRegistry.
type RegistryOption func(*ToolRegistry)

// WithRegistryMetrics counts tool calls by name and status.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *ToolRegistry) { r.metrics = m }
}

// WithRegistryLogger sets the logger for tool execution.
func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *ToolRegistry) { r.log = l }
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry(opts ...RegistryOption) *ToolRegistry {
	r := &ToolRegistry{
		tools: make(map[string]Tool),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Subset returns the named tools in the order given. Unknown names are skipped.
func (r *ToolRegistry) Subset(names ...string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Names returns the names of all tools in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs one tool call.
func (r *ToolRegistry) Execute(ctx context.Context, call ToolCall) (out string, err error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		r.count(call.Name, "unknown")
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}
	if tool.Handler == nil {
		r.count(call.Name, "error")
		return "", fmt.Errorf("llm: tool %q has no handler", call.Name)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("tool", call.Name).Interface("panic", rec).Msg("tool handler panicked")
			out, err = "", fmt.Errorf("%w: %s: %v", ErrToolPanic, call.Name, rec)
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.count(call.Name, status)
		r.log.Debug().Str("tool", call.Name).Dur("took", time.Since(start)).Str("status", status).Msg("tool call")
	}()

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return tool.Handler(ctx, args)
}

func (r *ToolRegistry) count(tool, status string) {
	if r.metrics != nil {
		r.metrics.ToolCalls.WithLabelValues(tool, status).Inc()
	}
}

// ExecuteAll runs all tool calls concurrently and returns results in order.
func (r *ToolRegistry) ExecuteAll(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			output, err := r.Execute(ctx, call)
			results[i] = ToolResult{
				ToolCallID: call.ID,
				Name:       call.Name,
				Arguments:  call.Arguments,
				Content:    output,
				Err:        err,
				Duration:   time.Since(start),
			}
		}()
	}
	wg.Wait()
	return results
}

// ToolResult is the outcome of one executed call.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Content    string          `json:"content"`
	Err        error           `json:"-"`
	Duration   time.Duration   `json:"duration"`
}

// Output is what the model sees: the payload, or an error object.
func (tr ToolResult) Output() string {
	if tr.Err != nil {
		b, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("Error executing tool %s: %v", tr.Name, tr.Err),
		})
		return string(b)
	}
	return tr.Content
}

// ToMessage converts the result to a message for the next model turn.
func (tr ToolResult) ToMessage() Message {
	return ToolResultMessage(tr.ToolCallID, tr.Name, tr.Output())
}
