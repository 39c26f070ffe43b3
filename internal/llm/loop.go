package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxIterations caps model turns when the caller sets no limit.
const DefaultMaxIterations = 5

// LoopState is a state of the tool-calling loop.
type LoopState int

const (
	StateAwaitingModel LoopState = iota
	StateExecutingTools
	StateDone
	StateFailed
)

func (s LoopState) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

// LoopConfig bounds one run of the loop.
type LoopConfig struct {
	MaxIterations int
	Tools         []Tool
	Options       *ChatOptions
}

// ToolCallRecord is one executed call, kept for the response metadata.
type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Output    string          `json:"output"`
	Error     string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// LoopResult is the final state of a run.
type LoopResult struct {
	Answer     string           `json:"answer"`
	State      LoopState        `json:"-"`
	Iterations int              `json:"iterations"`
	Stopped    bool             `json:"stopped"`
	ToolCalls  []ToolCallRecord `json:"toolCalls"`
	Usage      Usage            `json:"usage"`
	Messages   []Message        `json:"-"`
}

// ChatError wraps a model failure inside the loop. Callers use it to tell
// an LLM outage apart from other failures.
type ChatError struct {
	Iteration int
	Err       error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("llm: chat failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// IsChatError reports whether err came from the model rather than a tool
// or the caller.
func IsChatError(err error) bool {
	var ce *ChatError
	return errors.As(err, &ce)
}

// RunToolLoop drives the conversation: the model is asked for a turn, any
// tool calls it makes are executed and fed back, and this repeats until the
// model answers in plain text or MaxIterations model turns have been used.
// Hitting the cap is not an error: the result has Stopped set and carries
// the last text the model produced.
func RunToolLoop(ctx context.Context, provider Provider, registry *ToolRegistry,
	messages []Message, cfg LoopConfig) (*LoopResult, error) {

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	msgs := make([]Message, len(messages), len(messages)+2*maxIter)
	copy(msgs, messages)

	res := &LoopResult{State: StateAwaitingModel, ToolCalls: []ToolCallRecord{}}
	var lastText string
	var pending []ToolCall

	for {
		switch res.State {
		case StateAwaitingModel:
			if res.Iterations >= maxIter {
				res.Stopped = true
				res.Answer = lastText
				if res.Answer == "" {
					res.Answer = fmt.Sprintf("Stopped after %d iterations without a final answer.", maxIter)
				}
				res.State = StateDone
				continue
			}
			if err := ctx.Err(); err != nil {
				res.State = StateFailed
				res.Messages = msgs
				return res, &ChatError{Iteration: res.Iterations + 1, Err: err}
			}

			res.Iterations++
			resp, err := provider.Chat(ctx, msgs, cfg.Tools, cfg.Options)
			if err != nil {
				res.State = StateFailed
				res.Messages = msgs
				return res, &ChatError{Iteration: res.Iterations, Err: err}
			}
			res.Usage.Add(resp.Usage)
			if resp.Content != "" {
				lastText = resp.Content
			}

			if !resp.HasToolCalls() {
				if resp.Content == "" {
					res.State = StateFailed
					res.Messages = msgs
					return res, &ChatError{Iteration: res.Iterations, Err: ErrEmptyResponse}
				}
				msgs = append(msgs, AssistantMessage(resp.Content))
				res.Answer = resp.Content
				res.State = StateDone
				continue
			}

			msgs = append(msgs, AssistantToolCallMessage(resp.Content, resp.ToolCalls))
			pending = resp.ToolCalls
			res.State = StateExecutingTools

		case StateExecutingTools:
			for _, tr := range registry.ExecuteAll(ctx, pending) {
				rec := ToolCallRecord{
					Name:      tr.Name,
					Arguments: tr.Arguments,
					Output:    tr.Output(),
					Duration:  tr.Duration,
				}
				if tr.Err != nil {
					rec.Error = tr.Err.Error()
				}
				res.ToolCalls = append(res.ToolCalls, rec)
				msgs = append(msgs, tr.ToMessage())
			}
			pending = nil
			res.State = StateAwaitingModel

		case StateDone:
			res.Messages = msgs
			return res, nil

		default:
			return res, fmt.Errorf("llm: loop in unexpected state %s", res.State)
		}
	}
}
