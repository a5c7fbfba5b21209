// Package optimize implements the single-pass critique-then-revise step that
// refines a generated UI artifact.
//
// Refinement is two completion calls. Critique asks the UI critic to judge
// the artifact against an evaluation instruction and returns free-text
// feedback. Apply hands the artifact and that feedback back to the critic
// and returns the revised artifact text. Refinement is best effort: a call
// failure keeps the initial artifact, and unparseable revised text is
// returned raw.
package optimize

import (
	"context"
	"fmt"
	"strings"

	"uiforge/internal/logging"
	"uiforge/internal/perception"
	"uiforge/internal/prompt"
	"uiforge/internal/schema"
	"uiforge/internal/types"
)

// OptimizationState records one refinement step. It lives only for the
// duration of a Refine call and is returned for inspection.
type OptimizationState struct {
	Artifact    string // canonical text of the artifact under refinement
	Instruction string // evaluation instruction
	Feedback    string // critique output
	Revised     string // revised artifact text
}

// Result is the outcome of Refine.
type Result struct {
	// Artifact is the revised artifact, the initial artifact when
	// refinement could not run, or nil when the revised text did not parse.
	Artifact *schema.UIArtifact
	// Raw is the final text form: canonical JSON of Artifact, or the
	// unparsed revised text.
	Raw string
	// Refined reports whether a revision was produced.
	Refined bool
	State   OptimizationState
}

// Optimizer runs critique-then-revise against a completion client.
type Optimizer struct {
	client perception.Client
}

// New creates an Optimizer.
func New(client perception.Client) *Optimizer {
	return &Optimizer{client: client}
}

// EvaluationInstruction builds the instruction the critique is judged
// against. It embeds the prompt that produced the artifact, the artifact,
// any external feedback and, for a known category, the same requirement
// text used during generation.
func EvaluationInstruction(originalPrompt, artifactText, feedback string, category types.ProblemCategory) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's the prompt to optimize: %s.\n", originalPrompt)
	fmt.Fprintf(&sb, "The initial code generated by the above prompt is:\n%s\n", artifactText)
	fmt.Fprintf(&sb, "Evaluate the prompt based on the following response feedback:\n%s\n", feedback)
	if req, ok := prompt.CategoryRequirement(category); ok {
		fmt.Fprintf(&sb, "The code must also meet these acceptance criteria:\n%s\n", req)
	}
	sb.WriteString("Be smart, logical, and very critical. Just provide concise and general feedback.")
	return sb.String()
}

// Critique computes natural-language feedback on artifactText. The system
// instruction is the UI critic role, with category guidance when known.
func (o *Optimizer) Critique(ctx context.Context, artifactText, instruction string, category types.ProblemCategory) (string, error) {
	system, err := prompt.SystemInstruction(types.StageUICritique, category)
	if err != nil {
		return "", err
	}

	user := instruction + "\n\nCode to evaluate:\n" + artifactText
	feedback, err := o.client.CompleteWithSystem(perception.WithStage(ctx, types.StageUICritique), system, user)
	if err != nil {
		return "", fmt.Errorf("critique failed: %w", err)
	}
	return strings.TrimSpace(feedback), nil
}

// Apply performs one update step: the critic revises artifactText using
// feedback. The raw completion text is returned unparsed.
func (o *Optimizer) Apply(ctx context.Context, artifactText, feedback string, category types.ProblemCategory) (string, error) {
	p, err := prompt.Compose(types.StageUICritique, artifactText, category)
	if err != nil {
		return "", err
	}

	user := p.User +
		"\n\nFeedback on the code:\n" + feedback +
		"\n\nApply the feedback. Respond only with the improved code as a JSON object with html, css and js keys."

	shape, _ := schema.ShapeFor(types.StageUICritique)
	revised, err := o.client.CompleteStructured(perception.WithStage(ctx, types.StageUICritique), p.System, user, shape.JSONSchema())
	if err != nil {
		return "", fmt.Errorf("apply failed: %w", err)
	}
	return revised, nil
}

// Refine runs exactly one critique-then-revise pass over initial. plan is
// the input that produced initial. Refine never fails: errors fall back to
// the initial artifact.
func (o *Optimizer) Refine(ctx context.Context, plan *schema.UIPlan, initial *schema.UIArtifact, category types.ProblemCategory) *Result {
	fallback := func(state OptimizationState) *Result {
		return &Result{Artifact: initial, Raw: state.Artifact, State: state}
	}

	var state OptimizationState
	artifactText, err := schema.Marshal(initial)
	if err != nil {
		logging.OptimizeWarn("could not serialize artifact, skipping refinement: %v", err)
		return fallback(state)
	}
	state.Artifact = artifactText

	original, err := prompt.Compose(types.StageUIBuild, plan, category)
	if err != nil {
		logging.OptimizeWarn("could not rebuild generation prompt, skipping refinement: %v", err)
		return fallback(state)
	}
	state.Instruction = EvaluationInstruction(original.User, artifactText, "", category)

	timer := logging.StartTimer(logging.CategoryOptimize, "refine")
	defer timer.StopWithInfo()

	state.Feedback, err = o.Critique(ctx, artifactText, state.Instruction, category)
	if err != nil {
		logging.OptimizeWarn("keeping initial artifact: %v", err)
		return fallback(state)
	}
	logging.Optimize("critique feedback: %s", state.Feedback)

	state.Revised, err = o.Apply(ctx, artifactText, state.Feedback, category)
	if err != nil {
		logging.OptimizeWarn("keeping initial artifact: %v", err)
		return fallback(state)
	}
	if strings.TrimSpace(state.Revised) == "" {
		logging.OptimizeWarn("empty revision, keeping initial artifact")
		return fallback(state)
	}
	logging.Optimize("optimized code: %s", state.Revised)

	revised, err := schema.DecodeArtifact(state.Revised)
	if err != nil {
		logging.OptimizeWarn("revised code is not a valid artifact, returning raw text: %v", err)
		return &Result{Raw: state.Revised, Refined: true, State: state}
	}

	raw, err := schema.Marshal(revised)
	if err != nil {
		raw = state.Revised
	}
	return &Result{Artifact: revised, Raw: raw, Refined: true, State: state}
}
