package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/provider/llm"
)

// Transcript roles. The model role maps to the provider's assistant role when
// the request is built.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one entry of the in-memory transcript window.
type Turn struct {
	Role string
	Text string
}

// Normalizer outcomes, used as the metric attribute on analyze results.
const (
	OutcomeParsed   = "parsed"
	OutcomeSalvaged = "salvaged"
	OutcomeFallback = "fallback"
)

// Settings tunes a single analysis pass. All fields are hot-reloadable via
// [Analyzer.UpdateSettings].
type Settings struct {
	// HistoryWindow is the number of most recent transcript turns included in
	// the model request.
	HistoryWindow int

	// Temperature is the model sampling temperature.
	Temperature float64

	// MaxTokens caps the model's response length. Zero means provider default.
	MaxTokens int

	// ModelTimeout bounds the model call. Zero disables the timeout.
	ModelTimeout time.Duration

	// Persona overrides the default system persona when non-empty.
	Persona string
}

// Analyzer produces exactly one [Result] per user message. It builds a
// bounded-context request for the model provider, normalizes the response,
// and degrades to the fallback [Responder] on any failure. Analyze never
// returns an error; every failure path resolves to a usable result.
type Analyzer struct {
	provider llm.Provider
	fallback *Responder
	metrics  *observe.Metrics

	mu       sync.RWMutex
	settings Settings
}

// NewAnalyzer creates an [Analyzer]. The metrics argument may not be nil;
// pass [observe.DefaultMetrics] outside of tests.
func NewAnalyzer(provider llm.Provider, fallback *Responder, metrics *observe.Metrics, settings Settings) *Analyzer {
	return &Analyzer{
		provider: provider,
		fallback: fallback,
		metrics:  metrics,
		settings: settings,
	}
}

// UpdateSettings swaps the analyzer's settings. Safe to call while Analyze
// runs; in-flight calls keep the snapshot they started with.
func (a *Analyzer) UpdateSettings(settings Settings) {
	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
}

// Analyze assesses message in the context of the transcript window and
// returns a guaranteed-valid [Result].
func (a *Analyzer) Analyze(ctx context.Context, message string, window []Turn) Result {
	ctx, span := observe.StartSpan(ctx, "analysis.Analyze")
	defer span.End()

	a.mu.RLock()
	settings := a.settings
	a.mu.RUnlock()

	req := a.buildRequest(message, window, settings)

	callCtx := ctx
	if settings.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, settings.ModelTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.provider.Complete(callCtx, req)
	a.metrics.ModelDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		observe.Logger(ctx).Warn("model call failed, using fallback responder", "error", err)
		return a.respondOffline(ctx, message)
	}

	res, err := Normalize(resp.Content)
	if err == nil {
		a.metrics.RecordAnalyzeResult(ctx, OutcomeParsed)
		return res
	}
	observe.Logger(ctx).Warn("model response failed normalization", "error", err)

	if res, ok := SalvageReply(resp.Content); ok {
		a.metrics.RecordAnalyzeResult(ctx, OutcomeSalvaged)
		return res
	}

	return a.respondOffline(ctx, message)
}

// buildRequest assembles the provider request: system instruction, then up to
// HistoryWindow transcript turns mapped to the provider role vocabulary, then
// the current message as the final user turn.
func (a *Analyzer) buildRequest(message string, window []Turn, settings Settings) llm.CompletionRequest {
	if n := settings.HistoryWindow; n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}

	messages := make([]llm.Message, 0, len(window)+1)
	for _, turn := range window {
		if turn.Text == "" {
			continue
		}
		role := llm.RoleUser
		if turn.Role == RoleModel {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	return llm.CompletionRequest{
		SystemPrompt: SystemPrompt(settings.Persona),
		Messages:     messages,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
	}
}

// respondOffline produces a canned result and records the fallback metrics.
func (a *Analyzer) respondOffline(ctx context.Context, message string) Result {
	res, rule := a.fallback.Respond(message)
	a.metrics.RecordFallbackReply(ctx, rule)
	a.metrics.RecordAnalyzeResult(ctx, OutcomeFallback)
	return res
}
