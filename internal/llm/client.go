package llm

import (
	"context"
	"fmt"
)

// Mode selects how a prompt should be answered.
type Mode string

const (
	ModePlain      Mode = "plain"
	ModeStructured Mode = "structured"
	ModeSearch     Mode = "search"
	ModeCode       Mode = "code"
)

// Client is the minimal provider surface: one prompt in, one reply out.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reasoner is the external-collaborator contract consumed by the pipeline
// and the competition engine. Implementations retry internally; a returned
// error is always a *ReasonerError wrapping the last cause.
type Reasoner interface {
	Reason(ctx context.Context, prompt string, mode Mode) (string, error)
	// ReasonBatch answers each prompt independently. Failures are reported
	// per index; the slice always has one entry per prompt, in order.
	ReasonBatch(ctx context.Context, prompts []string, mode Mode) ([]BatchResult, error)
}

// BatchResult is the per-prompt outcome of ReasonBatch.
type BatchResult struct {
	Index  int
	Output string
	Err    error
}

// ReasonerError reports collaborator failure after retry exhaustion.
type ReasonerError struct {
	Provider string
	Attempts int
	Cause    error
}

func (e *ReasonerError) Error() string {
	return fmt.Sprintf("reasoner %s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Cause)
}

func (e *ReasonerError) Unwrap() error { return e.Cause }
