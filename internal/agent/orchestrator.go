package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/agent/prompts"
	"github.com/seenimoa/stockai/internal/llm"
	"github.com/seenimoa/stockai/internal/metrics"
	"github.com/seenimoa/stockai/internal/tools"
)

// Confidence reported per route.
const (
	ConfidenceAnalysis   = 0.85
	ConfidenceComparison = 0.9
	ConfidenceGeneral    = 0.3
)

// Model-turn caps per route.
const (
	AnalysisMaxIterations   = 5
	ComparisonMaxIterations = 3
)

// Result is the orchestrator's answer to one query.
type Result struct {
	Type       QueryType            `json:"type"`
	Answer     string               `json:"answer"`
	Symbols    []string             `json:"symbols"`
	Confidence float64              `json:"confidence"`
	Fallback   bool                 `json:"fallback"`
	Iterations int                  `json:"iterations"`
	ToolCalls  []llm.ToolCallRecord `json:"toolCalls,omitempty"`
	RequestID  string               `json:"requestId"`
	Duration   time.Duration        `json:"duration"`
}

// ComparisonResult is the scorecard of two stocks with a written
// narrative. Narrative falls back to Insight when the model fails.
type ComparisonResult struct {
	Comparison *tools.Comparison `json:"comparison"`
	Insight    string            `json:"insight"`
	Narrative  string            `json:"narrative"`
	Fallback   bool              `json:"fallback"`
	RequestID  string            `json:"requestId"`
	Duration   time.Duration     `json:"duration"`
}

// Config holds what an Orchestrator needs.
type Config struct {
	Provider    llm.Provider // nil answers every query from the fallback templates
	Toolkit     *tools.Toolkit
	Known       SymbolChecker
	ChatOptions *llm.ChatOptions
	Timeout     time.Duration
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// Orchestrator classifies queries and runs the matching analyst.
type Orchestrator struct {
	provider   llm.Provider
	toolkit    *tools.Toolkit
	registry   *llm.ToolRegistry
	classifier *Classifier
	analysis   *BaseAgent
	comparison *BaseAgent
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewOrchestrator registers the toolkit's tools and builds both analysts.
func NewOrchestrator(cfg Config) *Orchestrator {
	log := cfg.Logger.With().Str("component", "orchestrator").Logger()

	regOpts := []llm.RegistryOption{llm.WithRegistryLogger(log)}
	if cfg.Metrics != nil {
		regOpts = append(regOpts, llm.WithRegistryMetrics(cfg.Metrics))
	}
	registry := llm.NewToolRegistry(regOpts...)
	cfg.Toolkit.Register(registry)

	o := &Orchestrator{
		provider:   cfg.Provider,
		toolkit:    cfg.Toolkit,
		registry:   registry,
		classifier: NewClassifier(cfg.Provider, cfg.Known, log),
		metrics:    cfg.Metrics,
		log:        log,
	}

	o.analysis = NewBaseAgent(BaseAgentConfig{
		Name:         prompts.AgentAnalysis,
		Role:         "Single-stock research note from price, technical, options and news data",
		SystemPrompt: prompts.AnalysisSystemPrompt + prompts.PromptSuffix(),
		Provider:     cfg.Provider,
		Registry:     registry,
		ToolNames:    tools.AnalysisTools,
		ChatOptions:  cfg.ChatOptions,
		MaxToolIter:  AnalysisMaxIterations,
		Timeout:      cfg.Timeout,
	})
	o.comparison = NewBaseAgent(BaseAgentConfig{
		Name:         prompts.AgentComparison,
		Role:         "Side-by-side comparison of two stocks",
		SystemPrompt: prompts.ComparisonSystemPrompt + prompts.PromptSuffix(),
		Provider:     cfg.Provider,
		Registry:     registry,
		ToolNames:    tools.ComparisonTools,
		ChatOptions:  cfg.ChatOptions,
		MaxToolIter:  ComparisonMaxIterations,
		Timeout:      cfg.Timeout,
	})
	return o
}

// Registry returns the tool registry shared by both analysts.
func (o *Orchestrator) Registry() *llm.ToolRegistry { return o.registry }

// Classifier returns the query classifier.
func (o *Orchestrator) Classifier() *Classifier { return o.classifier }

// Process classifies the query and answers it. It never returns an error:
// failures are reported in the Answer with zero confidence.
func (o *Orchestrator) Process(ctx context.Context, query string) Result {
	return o.run(ctx, func(res *Result, log zerolog.Logger) {
		q := o.classifier.Classify(ctx, query)
		res.Type = q.Type
		res.Symbols = q.Symbols
		log.Debug().Str("type", string(q.Type)).Strs("symbols", q.Symbols).Str("method", q.Method).Msg("query classified")

		switch q.Type {
		case TypeComparison:
			o.runComparison(ctx, res, log, q.Symbols[0], q.Symbols[1])
		case TypeStockAnalysis:
			o.runAnalysis(ctx, res, log, query, q.Symbols[0])
		default:
			res.Answer = prompts.Clarification
			res.Confidence = ConfidenceGeneral
		}
	})
}

// Analyze answers with the single-stock analyst only, even when the query
// mentions two stocks.
func (o *Orchestrator) Analyze(ctx context.Context, query string) Result {
	return o.run(ctx, func(res *Result, log zerolog.Logger) {
		q := o.classifier.Classify(ctx, query)
		if len(q.Symbols) == 0 {
			res.Type = TypeGeneral
			res.Symbols = q.Symbols
			res.Answer = prompts.Clarification
			res.Confidence = ConfidenceGeneral
			return
		}
		res.Type = TypeStockAnalysis
		res.Symbols = q.Symbols[:1]
		o.runAnalysis(ctx, res, log, query, q.Symbols[0])
	})
}

// Compare scores two stocks and asks the comparison analyst for a
// narrative. Data errors (unknown symbol, same symbol twice) are returned;
// model errors are not.
func (o *Orchestrator) Compare(ctx context.Context, symbol1, symbol2 string) (*ComparisonResult, error) {
	start := time.Now()
	id := uuid.NewString()
	log := o.log.With().Str("request_id", id).Logger()

	c, err := o.toolkit.CompareStocks(ctx, symbol1, symbol2)
	if err != nil {
		return nil, err
	}

	out := &ComparisonResult{Comparison: c, Insight: c.Summary, RequestID: id}
	narrative, err := o.narrate(ctx, c)
	if err != nil {
		log.Warn().Err(err).Msg("comparison narrative failed; using template")
		narrative = comparisonSummary(c)
		out.Fallback = true
	}
	out.Narrative = narrative
	out.Duration = time.Since(start)
	o.count(TypeComparison, out.Fallback)
	return out, nil
}

// ── Routes ──

func (o *Orchestrator) runAnalysis(ctx context.Context, res *Result, log zerolog.Logger, query, symbol string) {
	if o.provider != nil {
		ar, err := o.analysis.Process(ctx, prompts.AnalysisRequest(query, symbol))
		res.Iterations = ar.Iterations
		res.ToolCalls = ar.ToolCalls
		if err == nil {
			res.Answer = ar.Content
			res.Confidence = ConfidenceAnalysis
			return
		}
		if !llm.IsChatError(err) {
			o.fail(res, err)
			return
		}
		log.Warn().Err(err).Str("symbol", symbol).Msg("analysis model failed; using template")
	}

	answer, err := o.analysisFallback(ctx, log, symbol)
	if err != nil {
		o.fail(res, err)
		return
	}
	res.Answer = answer
	res.Confidence = ConfidenceAnalysis
	res.Fallback = true
}

func (o *Orchestrator) runComparison(ctx context.Context, res *Result, log zerolog.Logger, symbol1, symbol2 string) {
	if o.provider != nil {
		ar, err := o.comparison.Process(ctx, prompts.ComparisonRequest(symbol1, symbol2))
		res.Iterations = ar.Iterations
		res.ToolCalls = ar.ToolCalls
		if err == nil {
			res.Answer = ar.Content
			res.Confidence = ConfidenceComparison
			return
		}
		if !llm.IsChatError(err) {
			o.fail(res, err)
			return
		}
		log.Warn().Err(err).Strs("symbols", res.Symbols).Msg("comparison model failed; using template")
	}

	c, err := o.toolkit.CompareStocks(ctx, symbol1, symbol2)
	if err != nil {
		o.fail(res, err)
		return
	}
	res.Answer = comparisonSummary(c)
	res.Confidence = ConfidenceComparison
	res.Fallback = true
}

func (o *Orchestrator) narrate(ctx context.Context, c *tools.Comparison) (string, error) {
	if o.provider == nil {
		return "", llm.ErrNoProviders
	}
	ar, err := o.comparison.Process(ctx, prompts.ComparisonRequest(c.Stock1.Symbol, c.Stock2.Symbol))
	if err != nil {
		return "", err
	}
	return ar.Content, nil
}

// ── Helpers ──

// run wraps one query with an ID, timing, panic recovery and metrics.
func (o *Orchestrator) run(ctx context.Context, fn func(res *Result, log zerolog.Logger)) (res Result) {
	start := time.Now()
	res.RequestID = uuid.NewString()
	res.Symbols = []string{}
	log := o.log.With().Str("request_id", res.RequestID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("query processing panicked")
			o.fail(&res, fmt.Errorf("%v", r))
		}
		res.Duration = time.Since(start)
		o.count(res.Type, res.Fallback)
		log.Info().
			Str("type", string(res.Type)).
			Bool("fallback", res.Fallback).
			Int("iterations", res.Iterations).
			Dur("duration", res.Duration).
			Msg("query answered")
	}()

	if err := ctx.Err(); err != nil {
		o.fail(&res, err)
		return res
	}
	fn(&res, log)
	return res
}

func (o *Orchestrator) fail(res *Result, err error) {
	msg := err.Error()
	var le *tools.LookupError
	if errors.As(err, &le) {
		msg = tools.UserMessage(le.Symbol, le.Err)
	}
	res.Answer = "Error processing query: " + msg
	res.Confidence = 0
	res.Fallback = false
}

func (o *Orchestrator) count(t QueryType, fallback bool) {
	if o.metrics == nil {
		return
	}
	label := string(t)
	if label == "" {
		label = "unknown"
	}
	o.metrics.Queries.WithLabelValues(label, strconv.FormatBool(fallback)).Inc()
}
