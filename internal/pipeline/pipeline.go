package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"uiforge/internal/logging"
	"uiforge/internal/optimize"
	"uiforge/internal/perception"
	"uiforge/internal/schema"
	"uiforge/internal/types"
)

// Refiner performs the optional refinement step.
type Refiner interface {
	Refine(ctx context.Context, plan *schema.UIPlan, initial *schema.UIArtifact, category types.ProblemCategory) *optimize.Result
}

// Publisher stores a final artifact and returns its public reference.
// artifact is nil when only raw text is available.
type Publisher interface {
	Publish(ctx context.Context, runID string, artifact *schema.UIArtifact, raw string) (types.Publication, error)
}

// PipelineRun is the state of one invocation. It is owned by a single Run
// call and never shared.
type PipelineRun struct {
	ID       string
	Spec     types.TaskSpecification
	Category types.ProblemCategory
	Started  time.Time

	outputs map[types.StageKind]schema.Output
}

func newRun(spec types.TaskSpecification) *PipelineRun {
	return &PipelineRun{
		ID:      uuid.NewString(),
		Spec:    spec,
		Started: time.Now(),
		outputs: make(map[types.StageKind]schema.Output),
	}
}

// Output returns the most recent valid output of stage.
func (r *PipelineRun) Output(stage types.StageKind) (schema.Output, bool) {
	out, ok := r.outputs[stage]
	return out, ok
}

func (r *PipelineRun) record(stage types.StageKind, out schema.Output) {
	r.outputs[stage] = out
}

// Outcome is the result of a pipeline run. Exactly one of Failure and
// Raw is meaningful: a failed run carries only the error payload.
type Outcome struct {
	RunID    string
	Category types.ProblemCategory

	// Failure is set when a stage failed; no partial output is returned.
	Failure     *ErrorResult
	FailedStage types.StageKind

	// Artifact is the final structured artifact. It is nil when refinement
	// produced text that did not parse.
	Artifact *schema.UIArtifact
	// Raw is the final artifact in text form.
	Raw string
	// Initial is the UI build output before refinement.
	Initial *schema.UIArtifact
	// Analysis and Plan are the intermediate stage outputs.
	Analysis *schema.TaskAnalysis
	Plan     *schema.UIPlan
	// Optimized reports whether refinement produced a revision.
	Optimized bool

	// Publication is set when a publisher stored the artifact.
	Publication *types.Publication

	Duration time.Duration
}

// Failed reports whether the run ended with a stage failure.
func (o *Outcome) Failed() bool {
	return o.Failure != nil
}

// Pipeline sequences the stages of a run.
type Pipeline struct {
	runner    StageRunner
	refiner   Refiner
	publisher Publisher
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRefiner enables the optional refinement step.
func WithRefiner(r Refiner) Option {
	return func(p *Pipeline) { p.refiner = r }
}

// WithPublisher publishes final artifacts.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// New creates a Pipeline.
func New(runner StageRunner, opts ...Option) *Pipeline {
	p := &Pipeline{runner: runner}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes task analysis, UI planning, UI build and, when optimize is
// set and a refiner is configured, one refinement pass.
//
// Stage failures are reported in Outcome.Failure and stop the run at once.
// The returned error is reserved for configuration errors (raised before any
// stage runs) and context cancellation.
func (p *Pipeline) Run(ctx context.Context, spec types.TaskSpecification, optimizeRequested bool) (*Outcome, error) {
	if err := p.runner.Preflight(); err != nil {
		logging.PipelineError("preflight failed: %v", err)
		return nil, err
	}

	run := newRun(spec)
	log := logging.WithRunID(logging.CategoryPipeline, run.ID)
	ctx = perception.WithRunID(ctx, run.ID)
	out := &Outcome{RunID: run.ID}
	defer func() { out.Duration = time.Since(run.Started) }()

	log.Info("pipeline started: optimize=%v spec_len=%d", optimizeRequested, len(spec.Text()))

	// 1. Task analysis
	analysisOut, err := p.stage(ctx, run, out, types.StageTaskAnalysis, spec)
	if err != nil {
		return nil, err
	}
	if out.Failed() {
		return out, nil
	}
	analysis := analysisOut.(*schema.TaskAnalysis)
	out.Analysis = analysis

	// 2. Category is fixed from here on.
	run.Category = analysis.Category()
	out.Category = run.Category
	if run.Category.Known() {
		log.Info("problem category: %s", run.Category)
	} else {
		log.Info("problem category %q not recognized, no category guidance", analysis.TaskType.Type)
	}

	// 3. UI plan
	planOut, err := p.stage(ctx, run, out, types.StageUIPlan, analysis)
	if err != nil {
		return nil, err
	}
	if out.Failed() {
		return out, nil
	}
	plan := planOut.(*schema.UIPlan)
	out.Plan = plan

	// 4. UI build
	buildOut, err := p.stage(ctx, run, out, types.StageUIBuild, plan)
	if err != nil {
		return nil, err
	}
	if out.Failed() {
		return out, nil
	}
	artifact := buildOut.(*schema.UIArtifact)
	out.Initial = artifact
	out.Artifact = artifact
	if out.Raw, err = schema.Marshal(artifact); err != nil {
		return nil, fmt.Errorf("failed to serialize artifact: %w", err)
	}

	// 5. Optional refinement
	if optimizeRequested && p.refiner != nil {
		log.Info("stage %s started", types.StageUICritique.Label())
		res := p.refiner.Refine(ctx, plan, artifact, run.Category)
		out.Artifact = res.Artifact
		out.Raw = res.Raw
		out.Optimized = res.Refined
		if res.Artifact != nil {
			run.record(types.StageUICritique, res.Artifact)
		}
		log.Info("stage %s finished: refined=%v", types.StageUICritique.Label(), res.Refined)
	}

	if p.publisher != nil {
		pub, err := p.publisher.Publish(ctx, run.ID, out.Artifact, out.Raw)
		if err != nil {
			// The artifact is still returned inline.
			log.Error("publication failed: %v", err)
		} else {
			out.Publication = &pub
			log.Info("artifact published: %s", pub.URL)
		}
	}

	log.Info("pipeline finished in %v", time.Since(run.Started))
	return out, nil
}

// stage runs one stage and records its output. A stage failure is written
// to out; only configuration and cancellation errors are returned.
func (p *Pipeline) stage(ctx context.Context, run *PipelineRun, out *Outcome, stage types.StageKind, payload interface{}) (schema.Output, error) {
	log := logging.WithRunID(logging.CategoryPipeline, run.ID)
	log.Info("stage %s started", stage.Label())

	result, err := p.runner.Run(ctx, stage, payload, run.Category)
	if err != nil {
		var failed *StageFailedError
		if errors.As(err, &failed) {
			payload := failed.Payload()
			out.Failure = &payload
			out.FailedStage = stage
			log.Error("stage %s failed, stopping: %v", stage.Label(), failed.LastErr)
			return nil, nil
		}
		log.Error("stage %s aborted: %v", stage.Label(), err)
		return nil, err
	}

	run.record(stage, result)
	log.Info("stage %s finished", stage.Label())
	return result, nil
}
