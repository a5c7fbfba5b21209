package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"uiforge/internal/logging"
	"uiforge/internal/perception"
)

// TraceStore persists completion traces. It implements
// perception.TraceStore.
type TraceStore struct {
	store *Store
}

// NewTraceStore creates a TraceStore over s.
func NewTraceStore(s *Store) *TraceStore {
	return &TraceStore{store: s}
}

// StoreTrace persists one trace.
func (ts *TraceStore) StoreTrace(ctx context.Context, trace *perception.CompletionTrace) error {
	timer := logging.StartTimer(logging.CategoryStore, "StoreTrace")
	defer timer.Stop()

	if trace.Timestamp.IsZero() {
		trace.Timestamp = time.Now()
	}

	_, err := ts.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO completion_traces
		(id, run_id, stage, model, structured, system_prompt, user_prompt,
		 response, duration_ms, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.RunID, trace.Stage, trace.Model, trace.Structured,
		trace.SystemPrompt, trace.UserPrompt, trace.Response, trace.DurationMs,
		trace.Success, trace.ErrorMessage, trace.Timestamp.UnixMilli(),
	)
	if err != nil {
		logging.StoreError("failed to store trace %s: %v", trace.ID, err)
		return fmt.Errorf("failed to store trace: %w", err)
	}

	logging.StoreDebug("trace stored: id=%s run=%s stage=%s success=%v", trace.ID, trace.RunID, trace.Stage, trace.Success)
	return nil
}

// RunTraces returns every trace of a run in call order.
func (ts *TraceStore) RunTraces(ctx context.Context, runID string) ([]perception.CompletionTrace, error) {
	return ts.query(ctx, `
		SELECT id, run_id, stage, model, structured, system_prompt, user_prompt,
		       response, duration_ms, success, error_message, created_at
		FROM completion_traces
		WHERE run_id = ?
		ORDER BY created_at ASC, rowid ASC`, runID)
}

// FailedTraces returns recent failed calls, optionally limited to one stage.
func (ts *TraceStore) FailedTraces(ctx context.Context, stage string, limit int) ([]perception.CompletionTrace, error) {
	if limit <= 0 {
		limit = 20
	}
	return ts.query(ctx, `
		SELECT id, run_id, stage, model, structured, system_prompt, user_prompt,
		       response, duration_ms, success, error_message, created_at
		FROM completion_traces
		WHERE success = 0 AND (? = '' OR stage = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, stage, stage, limit)
}

// StageStats summarizes completion calls for one stage.
type StageStats struct {
	Stage         string  `json:"stage"`
	Calls         int     `json:"calls"`
	Failures      int     `json:"failures"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Stats aggregates call counts and latency per stage.
func (ts *TraceStore) Stats(ctx context.Context) ([]StageStats, error) {
	rows, err := ts.store.db.QueryContext(ctx, `
		SELECT COALESCE(stage, ''), COUNT(*), SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		       AVG(duration_ms)
		FROM completion_traces
		GROUP BY stage
		ORDER BY stage`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate traces: %w", err)
	}
	defer rows.Close()

	var out []StageStats
	for rows.Next() {
		var s StageStats
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Stage, &s.Calls, &s.Failures, &avg); err != nil {
			return nil, err
		}
		s.AvgDurationMs = avg.Float64
		out = append(out, s)
	}
	return out, rows.Err()
}

func (ts *TraceStore) query(ctx context.Context, q string, args ...any) ([]perception.CompletionTrace, error) {
	rows, err := ts.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		logging.StoreError("trace query failed: %v", err)
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []perception.CompletionTrace
	for rows.Next() {
		var (
			t                           perception.CompletionTrace
			runID, stage, model, errMsg sql.NullString
			duration                    sql.NullInt64
			createdAt                   int64
		)
		if err := rows.Scan(&t.ID, &runID, &stage, &model, &t.Structured, &t.SystemPrompt,
			&t.UserPrompt, &t.Response, &duration, &t.Success, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		t.RunID, t.Stage, t.Model, t.ErrorMessage = runID.String, stage.String, model.String, errMsg.String
		t.DurationMs = duration.Int64
		t.Timestamp = time.UnixMilli(createdAt)
		traces = append(traces, t)
	}
	return traces, rows.Err()
}
