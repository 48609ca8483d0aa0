// Package crisis implements the risk-threshold policy that logs crisis events
// and surfaces safety resources to the user.
package crisis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mindmate-app/mindmate/internal/analysis"
	"github.com/mindmate-app/mindmate/internal/observe"
	"github.com/mindmate-app/mindmate/pkg/store"
)

// Keywords scanned for (case-insensitive) in the triggering user message when
// the policy fires. The scan target is the user's message, not the model's
// reply.
var Keywords = []string{"suicide", "kill", "hurt", "die", "end", "harm", "death"}

// ActionTaken is the fixed label persisted with every crisis event.
const ActionTaken = "Crisis resources provided"

// SafetyMessage is the fixed safety-resources text shown to the user when the
// policy fires.
const SafetyMessage = "⚠️ I'm concerned about your safety. Please reach out for help:\n\n" +
	"📞 National Suicide Prevention Lifeline: 988\n" +
	"📱 Crisis Text Line: Text HOME to 741741\n\n" +
	"You're not alone. 💙"

// defaultSafetyDelay is how long the safety message display is deferred after
// the policy fires.
const defaultSafetyDelay = 500 * time.Millisecond

// Policy evaluates analysis results against a risk threshold. When the
// threshold is met it persists a crisis event (best-effort) and schedules the
// safety message independently, so a persistence failure never suppresses the
// user-facing resources.
type Policy struct {
	logs    store.CrisisStore
	metrics *observe.Metrics
	delay   time.Duration

	mu        sync.RWMutex
	threshold float64
}

// PolicyOption configures a [Policy].
type PolicyOption func(*Policy)

// WithSafetyDelay overrides the delay before the safety message is shown.
// Tests use this to avoid real sleeps.
func WithSafetyDelay(d time.Duration) PolicyOption {
	return func(p *Policy) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// NewPolicy creates a [Policy] that fires at or above threshold.
func NewPolicy(logs store.CrisisStore, metrics *observe.Metrics, threshold float64, opts ...PolicyOption) *Policy {
	p := &Policy{
		logs:      logs,
		metrics:   metrics,
		delay:     defaultSafetyDelay,
		threshold: threshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetThreshold swaps the firing threshold. Supports config hot reload.
func (p *Policy) SetThreshold(threshold float64) {
	p.mu.Lock()
	p.threshold = threshold
	p.mu.Unlock()
}

// Evaluate checks res against the threshold. When the policy fires it scans
// message for crisis keywords, persists a crisis event, and schedules notify
// with the safety text after a short delay. Reports whether the policy fired.
//
// Persistence failures are logged and swallowed; notify is scheduled
// regardless. The delayed notify is dropped if ctx is cancelled first.
func (p *Policy) Evaluate(ctx context.Context, userID string, res analysis.Result, message string, notify func(string)) bool {
	p.mu.RLock()
	threshold := p.threshold
	p.mu.RUnlock()

	if res.RiskScore < threshold {
		return false
	}

	matched := MatchKeywords(message)
	p.metrics.RecordCrisisEvent(ctx)
	observe.Logger(ctx).Warn("crisis policy fired",
		"risk_score", res.RiskScore,
		"threshold", threshold,
		"matched_keywords", matched,
	)

	if err := p.logs.SaveCrisisLog(ctx, store.CrisisLog{
		UserID:          userID,
		RiskScore:       res.RiskScore,
		TriggerKeywords: matched,
		ActionTaken:     ActionTaken,
	}); err != nil {
		observe.Logger(ctx).Error("failed to persist crisis event", "error", err)
	}

	if notify != nil {
		go func() {
			timer := time.NewTimer(p.delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
				notify(SafetyMessage)
			}
		}()
	}
	return true
}

// MatchKeywords returns the subset of [Keywords] present in message,
// case-insensitive, in declaration order. The result is never nil.
func MatchKeywords(message string) []string {
	lower := strings.ToLower(message)
	matched := []string{}
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
