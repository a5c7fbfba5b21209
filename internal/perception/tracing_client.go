package perception

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"uiforge/internal/logging"
)

// CompletionTrace captures one completion call for later inspection.
type CompletionTrace struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	Model        string    `json:"model,omitempty"`
	Structured   bool      `json:"structured"`
	SystemPrompt string    `json:"system_prompt"`
	UserPrompt   string    `json:"user_prompt"`
	Response     string    `json:"response"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TraceStore persists completion traces.
type TraceStore interface {
	StoreTrace(ctx context.Context, trace *CompletionTrace) error
}

// TracingClient wraps a Client and records every call. Stage and run
// attribution come from the call context (see WithStage and WithRunID).
// Traces are stored asynchronously; Flush waits for pending writes.
type TracingClient struct {
	underlying Client
	store      TraceStore
	wg         sync.WaitGroup
}

// NewTracingClient creates a tracing wrapper around an existing client.
func NewTracingClient(underlying Client, store TraceStore) *TracingClient {
	return &TracingClient{underlying: underlying, store: store}
}

// GetModel returns the underlying model.
func (tc *TracingClient) GetModel() string {
	return tc.underlying.GetModel()
}

// CompleteWithSystem implements Client with tracing.
func (tc *TracingClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return tc.trace(ctx, systemPrompt, userPrompt, false, func() (string, error) {
		return tc.underlying.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	})
}

// CompleteStructured implements Client with tracing.
func (tc *TracingClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	return tc.trace(ctx, systemPrompt, userPrompt, true, func() (string, error) {
		return tc.underlying.CompleteStructured(ctx, systemPrompt, userPrompt, schema)
	})
}

func (tc *TracingClient) trace(ctx context.Context, systemPrompt, userPrompt string, structured bool, call func() (string, error)) (string, error) {
	stage, _ := StageFrom(ctx)
	runID := RunIDFrom(ctx)

	start := time.Now()
	logging.API("LLM call started: run=%s stage=%s prompt_len=%d", runID, stage, len(userPrompt))

	response, err := call()

	duration := time.Since(start)
	if err != nil {
		logging.API("LLM call failed: run=%s stage=%s duration=%v error=%s", runID, stage, duration, err.Error())
	} else {
		logging.API("LLM call completed: run=%s stage=%s duration=%v response_len=%d", runID, stage, duration, len(response))
	}

	if tc.store == nil {
		return response, err
	}

	trace := &CompletionTrace{
		ID:           uuid.NewString(),
		RunID:        runID,
		Stage:        string(stage),
		Model:        tc.underlying.GetModel(),
		Structured:   structured,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Response:     response,
		DurationMs:   duration.Milliseconds(),
		Success:      err == nil,
		Timestamp:    start,
	}
	if err != nil {
		trace.ErrorMessage = err.Error()
	}

	// Stored asynchronously; Flush waits for pending writes.
	storeCtx := context.WithoutCancel(ctx)
	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if storeErr := tc.store.StoreTrace(storeCtx, trace); storeErr != nil {
			logging.APIDebug("Failed to store completion trace: %v", storeErr)
		}
	}()

	return response, err
}

// Flush blocks until all pending trace writes have finished.
func (tc *TracingClient) Flush() {
	tc.wg.Wait()
}
