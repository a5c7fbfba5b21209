package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiforge/internal/logging"
	"uiforge/internal/perception"
	"uiforge/internal/perception/perceptiontest"
	"uiforge/internal/prompt"
	"uiforge/internal/schema"
	"uiforge/internal/types"
)

var stagePayloads = map[types.StageKind]struct {
	payload interface{}
	valid   string
}{
	types.StageTaskAnalysis: {types.TaskSpecification{Content: "Classify images into 1000 categories"}, analysisJSON},
	types.StageUIPlan:       {&schema.TaskAnalysis{}, planJSON},
	types.StageUIBuild:      {&schema.UIPlan{}, artifactJSON},
	types.StageUICritique:   {"<main></main>", artifactJSON},
}

func TestExecutor_AlwaysInvalidMakesExactlyThreeAttempts(t *testing.T) {
	for _, stage := range types.AllStages {
		t.Run(string(stage), func(t *testing.T) {
			rec := &sleepRecorder{}
			mock := perceptiontest.NewMockClient().Respond(stage, `{"unexpected": true}`)
			exec := NewExecutor(mock, testPolicy(rec))

			out, err := exec.Run(context.Background(), stage, stagePayloads[stage].payload, types.CategoryUnknown)
			assert.Nil(t, out)

			var failed *StageFailedError
			require.ErrorAs(t, err, &failed)
			assert.Equal(t, stage, failed.Stage)
			assert.Equal(t, 3, failed.Attempts)
			assert.ErrorIs(t, failed, schema.ErrValidation)
			assert.Equal(t, ErrorResult{Error: "Invalid structured response from the model"}, failed.Payload())

			assert.Equal(t, 3, mock.CallCount(stage))
			assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, rec.waits)
		})
	}
}

func TestExecutor_SucceedsOnNthAttempt(t *testing.T) {
	for _, stage := range types.AllStages {
		for n := 1; n <= 3; n++ {
			t.Run(fmt.Sprintf("%s/attempt_%d", stage, n), func(t *testing.T) {
				rec := &sleepRecorder{}
				mock := perceptiontest.NewMockClient()
				for i := 1; i < n; i++ {
					mock.Respond(stage, "not json")
				}
				mock.Respond(stage, stagePayloads[stage].valid)

				exec := NewExecutor(mock, testPolicy(rec))
				out, err := exec.Run(context.Background(), stage, stagePayloads[stage].payload, types.CategoryUnknown)

				require.NoError(t, err)
				require.NotNil(t, out)
				require.NoError(t, out.Validate())
				assert.Equal(t, n, mock.CallCount(stage))
				assert.Len(t, rec.waits, n-1)
			})
		}
	}
}

func TestExecutor_WellFormedButIncompleteIsRetried(t *testing.T) {
	rec := &sleepRecorder{}
	mock := perceptiontest.NewMockClient().
		Respond(types.StageUIBuild, `{"html": "<p>hi</p>"}`).
		Respond(types.StageUIBuild, artifactJSON)

	out, err := NewExecutor(mock, testPolicy(rec)).Run(context.Background(), types.StageUIBuild, &schema.UIPlan{}, types.CategoryUnknown)
	require.NoError(t, err)
	assert.Contains(t, out.(*schema.UIArtifact).Markup, `id="labels"`)
	assert.Equal(t, 2, mock.CallCount(types.StageUIBuild))
}

func TestExecutor_UpstreamFailuresShareBudget(t *testing.T) {
	rec := &sleepRecorder{}
	mock := perceptiontest.NewMockClient().
		Fail(types.StageUIPlan, perception.ErrUpstreamUnavailable).
		Respond(types.StageUIPlan, "{}").
		Fail(types.StageUIPlan, perception.ErrUpstreamUnavailable)

	_, err := NewExecutor(mock, testPolicy(rec)).Run(context.Background(), types.StageUIPlan, &schema.TaskAnalysis{}, types.CategoryUnknown)

	var failed *StageFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, failed.LastErr, perception.ErrUpstreamUnavailable)
	assert.Equal(t, 3, mock.CallCount(types.StageUIPlan))
	assert.Len(t, rec.waits, 2)
}

func TestExecutor_ConfigurationErrorNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	mock := perceptiontest.NewMockClient().Fail(types.StageTaskAnalysis, fmt.Errorf("%w: bad key", types.ErrConfiguration))

	_, err := NewExecutor(mock, testPolicy(rec)).Run(context.Background(), types.StageTaskAnalysis, "spec", types.CategoryUnknown)

	assert.ErrorIs(t, err, types.ErrConfiguration)
	var failed *StageFailedError
	assert.False(t, errors.As(err, &failed))
	assert.Equal(t, 1, mock.CallCount(types.StageTaskAnalysis))
	assert.Empty(t, rec.waits)
}

func TestExecutor_ComposeErrorNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	mock := perceptiontest.NewMockClient().Respond(types.StageUIPlan, planJSON)

	_, err := NewExecutor(mock, testPolicy(rec)).Run(context.Background(), types.StageUIPlan, nil, types.CategoryUnknown)

	require.Error(t, err)
	var failed *StageFailedError
	assert.False(t, errors.As(err, &failed))
	assert.Contains(t, err.Error(), "compose")
	assert.Empty(t, mock.Calls())
	assert.Empty(t, rec.waits)
}

func TestExecutor_KeepsCallerRetryable(t *testing.T) {
	rec := &sleepRecorder{}
	mock := perceptiontest.NewMockClient().Fail(types.StageUIPlan, perception.ErrUpstreamUnavailable)
	policy := testPolicy(rec)
	policy.Retryable = func(err error) bool { return !errors.Is(err, perception.ErrUpstreamUnavailable) }

	_, err := NewExecutor(mock, policy).Run(context.Background(), types.StageUIPlan, &schema.TaskAnalysis{}, types.CategoryUnknown)

	var failed *StageFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 1, failed.Attempts)
	assert.Equal(t, 1, mock.CallCount(types.StageUIPlan))
	assert.Empty(t, rec.waits)
}

func TestExecutor_LogsInputAndOutputAtInfo(t *testing.T) {
	entries, unsubscribe := logging.Subscribe(256)
	defer unsubscribe()

	mock := perceptiontest.NewMockClient().Respond(types.StageTaskAnalysis, analysisJSON)
	_, err := NewExecutor(mock, testPolicy(&sleepRecorder{})).Run(context.Background(), types.StageTaskAnalysis, "Classify images", types.CategoryUnknown)
	require.NoError(t, err)

	var input, output bool
drain:
	for {
		select {
		case e := <-entries:
			if e.Category == string(logging.CategoryPipeline) && e.Level == "info" {
				input = input || strings.Contains(e.Message, "input: ")
				output = output || strings.Contains(e.Message, "output: ")
			}
		default:
			break drain
		}
	}
	assert.True(t, input, "stage input logged at info")
	assert.True(t, output, "stage output logged at info")
}

func TestExecutor_RecomposesEveryAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	mock := perceptiontest.NewMockClient().
		Respond(types.StageUIBuild, "garbage").
		Respond(types.StageUIBuild, artifactJSON)

	_, err := NewExecutor(mock, testPolicy(rec)).Run(context.Background(), types.StageUIBuild, &schema.UIPlan{}, types.CategoryObjectDetection)
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	req, _ := prompt.CategoryRequirement(types.CategoryObjectDetection)
	for _, c := range calls {
		assert.True(t, c.Structured)
		assert.NotNil(t, c.Schema)
		assert.Contains(t, c.SystemPrompt, req)
	}
	assert.Equal(t, calls[0], calls[1])
}

func TestExecutor_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := perceptiontest.NewMockClient()
	mock.RespondFunc = func(context.Context, perceptiontest.MockCall) (string, error) {
		cancel()
		return "not json", nil
	}

	_, err := NewExecutor(mock, testPolicy(&sleepRecorder{})).Run(ctx, types.StageUIPlan, &schema.TaskAnalysis{}, types.CategoryUnknown)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mock.Calls(), 1)
}

func TestExecutor_Preflight(t *testing.T) {
	mock := perceptiontest.NewMockClient()
	exec := NewExecutor(mock, testPolicy(&sleepRecorder{}))
	assert.NoError(t, exec.Preflight())

	mock.Model = " "
	assert.ErrorIs(t, exec.Preflight(), types.ErrConfiguration)
}
