// Package pipeline runs the staged UI generation flow: task analysis, UI
// planning, UI build and optional refinement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"uiforge/internal/logging"
	"uiforge/internal/perception"
	"uiforge/internal/prompt"
	"uiforge/internal/retry"
	"uiforge/internal/schema"
	"uiforge/internal/types"
)

// InvalidResponseMessage is the user-visible message of a failed stage.
const InvalidResponseMessage = "Invalid structured response from the model"

// ErrorResult is the only failure shape shown to callers.
type ErrorResult struct {
	Error string `json:"error"`
}

// StageFailedError reports that a stage exhausted its attempts without a
// valid structured output.
type StageFailedError struct {
	Stage    types.StageKind
	Attempts int
	LastErr  error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempts: %v", e.Stage, e.Attempts, e.LastErr)
}

func (e *StageFailedError) Unwrap() error {
	return e.LastErr
}

// Payload returns the user-visible error payload.
func (e *StageFailedError) Payload() ErrorResult {
	return ErrorResult{Error: InvalidResponseMessage}
}

// StageRunner executes a single stage.
type StageRunner interface {
	// Preflight checks configuration before any stage runs.
	Preflight() error
	// Run produces the validated output of stage for payload.
	Run(ctx context.Context, stage types.StageKind, payload interface{}, category types.ProblemCategory) (schema.Output, error)
}

// Executor runs stages against a completion client under a retry policy.
type Executor struct {
	client perception.Client
	policy retry.Policy
}

// NewExecutor creates an Executor. A nil Retryable on policy defaults to
// retry.DefaultRetryable: configuration errors and cancellation are not
// retried, upstream and validation failures share one budget.
func NewExecutor(client perception.Client, policy retry.Policy) *Executor {
	if policy.Retryable == nil {
		policy.Retryable = retry.DefaultRetryable
	}
	return &Executor{client: client, policy: policy}
}

// Preflight fails with types.ErrConfiguration when no model is configured.
func (e *Executor) Preflight() error {
	if strings.TrimSpace(e.client.GetModel()) == "" {
		return fmt.Errorf("%w: no model identifier configured", types.ErrConfiguration)
	}
	return nil
}

// Run composes, calls and validates until a valid output is produced or the
// attempt budget is spent. Every attempt recomposes the prompt and issues a
// fresh completion call. Exhaustion yields a *StageFailedError; configuration
// errors and context cancellation are returned as they are.
func (e *Executor) Run(ctx context.Context, stage types.StageKind, payload interface{}, category types.ProblemCategory) (schema.Output, error) {
	shape, ok := schema.ShapeFor(stage)
	if !ok {
		return nil, fmt.Errorf("no output shape for stage %s", stage)
	}

	policy := e.policy
	userOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		logging.PipelineWarn("[%s] - attempt %d/%d failed, retrying in %v: %v", stage.Label(), attempt, policy.MaxAttempts, policy.Delay, err)
		if userOnRetry != nil {
			userOnRetry(attempt, err)
		}
	}

	callCtx := perception.WithStage(ctx, stage)
	out, attempts, err := retry.Do(ctx, policy, func(_ context.Context, attempt int) (schema.Output, error) {
		p, err := prompt.Compose(stage, payload, category)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("failed to compose %s prompt: %w", stage, err))
		}
		logging.Pipeline("[%s] - attempt %d input: %s", stage.Label(), attempt, p.User)

		raw, err := e.client.CompleteStructured(callCtx, p.System, p.User, shape.JSONSchema())
		if err != nil {
			return nil, err
		}
		return shape.Decode(raw)
	})

	if err == nil {
		if text, mErr := schema.Marshal(out); mErr == nil {
			logging.Pipeline("[%s] - output: %s", stage.Label(), text)
		}
		return out, nil
	}

	if errors.Is(err, types.ErrConfiguration) || ctx.Err() != nil {
		return nil, err
	}
	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		logging.PipelineError("[%s] - %v", stage.Label(), permanent.Err)
		return nil, permanent.Err
	}

	last := err
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		last = exhausted.Last
	}
	logging.PipelineError("[%s] - failed after %d attempts: %v", stage.Label(), attempts, last)
	return nil, &StageFailedError{Stage: stage, Attempts: attempts, LastErr: last}
}
