package llm

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// retryReasoner adapts a provider Client to the Reasoner contract: it frames
// the prompt for the requested mode, retries transient failures with a short
// linear backoff, and fans batches out over a bounded worker pool.
type retryReasoner struct {
	client   Client
	provider string
	retries  int
	workers  int
}

// NewReasoner wraps a provider client. retries and workers fall back to 1
// and 8 when non-positive.
func NewReasoner(client Client, provider string, retries, workers int) Reasoner {
	if retries < 1 {
		retries = 1
	}
	if workers < 1 {
		workers = 8
	}
	return &retryReasoner{client: client, provider: provider, retries: retries, workers: workers}
}

func (r *retryReasoner) Reason(ctx context.Context, prompt string, mode Mode) (string, error) {
	framed := frame(prompt, mode)

	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		out, err := r.client.Generate(ctx, framed)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < r.retries {
			select {
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			case <-ctx.Done():
				return "", &ReasonerError{Provider: r.provider, Attempts: attempt, Cause: ctx.Err()}
			}
		}
	}
	return "", &ReasonerError{Provider: r.provider, Attempts: r.retries, Cause: lastErr}
}

func (r *retryReasoner) ReasonBatch(ctx context.Context, prompts []string, mode Mode) ([]BatchResult, error) {
	results := make([]BatchResult, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, p := range prompts {
		i, p := i, p
		g.Go(func() error {
			out, err := r.Reason(gctx, p, mode)
			results[i] = BatchResult{Index: i, Output: out, Err: err}
			// Per-index failures never fail the batch.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func frame(prompt string, mode Mode) string {
	switch mode {
	case ModeStructured:
		return prompt + "\n\nRespond with a single JSON object and nothing else."
	case ModeSearch:
		return "Survey the available literature and sources for the request below. " +
			"Report concrete findings with source descriptions.\n\n" + prompt
	case ModeCode:
		return prompt + "\n\nRespond with code only."
	default:
		return prompt
	}
}
