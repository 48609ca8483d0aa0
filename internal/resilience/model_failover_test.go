package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mindmate-app/mindmate/pkg/provider/llm"
	llmmock "github.com/mindmate-app/mindmate/pkg/provider/llm/mock"
)

func TestModelFailover_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "primary reply"},
	}
	backup := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "backup reply"},
	}

	f := NewModelFailover(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "primary reply" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(backup.Calls()) != 0 {
		t.Error("backup was called even though the primary succeeded")
	}
}

func TestModelFailover_FallsBack(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	backup := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "backup reply"},
	}

	f := NewModelFailover(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "backup reply" {
		t.Errorf("Content = %q, want the backup's reply", resp.Content)
	}
}

func TestModelFailover_AllFail(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	backup := &llmmock.Provider{CompleteErr: errors.New("also down")}

	f := NewModelFailover(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestModelFailover_OpenBreakerSkipsBackend(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	backup := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "backup reply"},
	}

	f := NewModelFailover(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	f.AddFallback("backup", backup)

	// First call fails the primary and trips its breaker.
	if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// Second call must go straight to the backup.
	if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary calls = %d, want 1 (breaker should skip it)", got)
	}
	if got := len(backup.Calls()); got != 2 {
		t.Errorf("backup calls = %d, want 2", got)
	}
}

func TestModelFailover_RequestForwarded(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}
	f := NewModelFailover(primary, "primary", FallbackConfig{})

	req := llm.CompletionRequest{
		SystemPrompt: "be kind",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature:  0.2,
	}
	if _, err := f.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	calls := primary.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Req.SystemPrompt != "be kind" || len(calls[0].Req.Messages) != 1 {
		t.Errorf("forwarded request = %+v", calls[0].Req)
	}
}
