// Package scope carries the dispatch cycle run ID through context so logs
// and traces emitted deep inside a cycle can be correlated with the run
// that produced them.
package scope

import "context"

type runKey struct{}

// WithRun returns a context tagged with the cycle run ID.
func WithRun(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey{}, runID)
}

// RunID extracts the cycle run ID from the context. Returns the empty
// string outside a cycle.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runKey{}).(string)
	return v
}
