// Package perception implements the completion client adapter: the only
// place uiforge talks to a language-model provider.
//
// Clients make exactly one provider request per call, always at temperature
// 0. They never retry; the pipeline's retry policy owns that.
package perception

import (
	"context"
	"errors"

	"uiforge/internal/types"
)

// ErrUpstreamUnavailable reports that the completion service could not be
// reached or answered with a transport-level failure.
var ErrUpstreamUnavailable = errors.New("completion service unavailable")

// Client is a text-completion service.
type Client interface {
	// CompleteWithSystem sends a system instruction and user content and
	// returns the raw completion text.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteStructured is CompleteWithSystem with a structured-output hint:
	// the provider is asked for a JSON object, shaped by schema when the
	// provider supports it. The result is still raw text; callers validate.
	CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error)

	// GetModel returns the configured model identifier.
	GetModel() string
}

type ctxKey int

const (
	stageKey ctxKey = iota
	runKey
)

// WithStage tags ctx with the pipeline stage a completion call belongs to.
func WithStage(ctx context.Context, stage types.StageKind) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFrom returns the stage tag of ctx, if any.
func StageFrom(ctx context.Context) (types.StageKind, bool) {
	s, ok := ctx.Value(stageKey).(types.StageKind)
	return s, ok
}

// WithRunID tags ctx with a pipeline run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey, runID)
}

// RunIDFrom returns the run identifier of ctx, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runKey).(string)
	return id
}
