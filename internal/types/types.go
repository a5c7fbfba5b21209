// Package types holds the identifiers shared by every layer of the UI
// generation pipeline: stage kinds, problem categories and the task
// specification submitted by callers.
package types

import (
	"errors"
	"strings"
)

// ErrConfiguration marks missing or invalid process configuration (model
// identifier, credentials). It is fatal and never retried.
var ErrConfiguration = errors.New("configuration error")

// =============================================================================
// STAGES
// =============================================================================

// StageKind identifies one pipeline stage.
type StageKind string

const (
	StageTaskAnalysis StageKind = "task_analyzer"
	StageUIPlan       StageKind = "ui_planner"
	StageUIBuild      StageKind = "ui_builder"
	StageUICritique   StageKind = "ui_critic"
)

// AllStages lists the stages in execution order.
var AllStages = []StageKind{StageTaskAnalysis, StageUIPlan, StageUIBuild, StageUICritique}

// String returns the wire name of the stage.
func (s StageKind) String() string { return string(s) }

// Label returns the human-readable name used in log lines.
func (s StageKind) Label() string {
	switch s {
	case StageTaskAnalysis:
		return "Task Analyzer"
	case StageUIPlan:
		return "UI Planner"
	case StageUIBuild:
		return "UI Builder"
	case StageUICritique:
		return "UI Critic"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known stages.
func (s StageKind) Valid() bool {
	for _, k := range AllStages {
		if k == s {
			return true
		}
	}
	return false
}

// CategoryAware reports whether prompts for this stage carry the
// category-specific requirement text.
func (s StageKind) CategoryAware() bool {
	return s == StageUIBuild || s == StageUICritique
}

// =============================================================================
// PROBLEM CATEGORIES
// =============================================================================

// ProblemCategory classifies the ML task being wrapped with a UI.
type ProblemCategory string

const (
	CategoryUnknown             ProblemCategory = ""
	CategoryTextClassification  ProblemCategory = "text_classification"
	CategoryImageClassification ProblemCategory = "image_classification"
	CategoryObjectDetection     ProblemCategory = "object_detection"
	CategoryTabularQA           ProblemCategory = "tabular_question_answering"
	CategoryAudioClassification ProblemCategory = "audio_classification"
)

// KnownCategories lists every category other than CategoryUnknown.
var KnownCategories = []ProblemCategory{
	CategoryTextClassification,
	CategoryImageClassification,
	CategoryObjectDetection,
	CategoryTabularQA,
	CategoryAudioClassification,
}

// categoryAliases maps normalized free-text labels to categories.
var categoryAliases = map[string]ProblemCategory{
	"text_classification":        CategoryTextClassification,
	"sentiment_analysis":         CategoryTextClassification,
	"image_classification":       CategoryImageClassification,
	"object_detection":           CategoryObjectDetection,
	"tabular_question_answering": CategoryTabularQA,
	"table_question_answering":   CategoryTabularQA,
	"tabular_qa":                 CategoryTabularQA,
	"audio_classification":       CategoryAudioClassification,
}

// ParseCategory maps a model-produced task type such as "Image classification"
// to a category. Case, spaces, hyphens and underscores are not significant.
// Unrecognized labels map to CategoryUnknown.
func ParseCategory(label string) ProblemCategory {
	norm := strings.ToLower(strings.TrimSpace(label))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for strings.Contains(norm, "__") {
		norm = strings.ReplaceAll(norm, "__", "_")
	}
	if c, ok := categoryAliases[norm]; ok {
		return c
	}
	return CategoryUnknown
}

// Known reports whether c is a recognized category.
func (c ProblemCategory) Known() bool {
	return c != CategoryUnknown
}

// String returns the category name, or "unknown".
func (c ProblemCategory) String() string {
	if c == CategoryUnknown {
		return "unknown"
	}
	return string(c)
}

// =============================================================================
// TASK SPECIFICATION
// =============================================================================

// TaskSpecification is the caller-submitted description of the ML task.
// Attachment holds the decoded content of an optional uploaded file.
type TaskSpecification struct {
	Content        string
	Attachment     string
	AttachmentName string
}

// Text returns the content with the attachment appended when present.
func (t TaskSpecification) Text() string {
	attachment := strings.TrimSpace(t.Attachment)
	if attachment == "" {
		return t.Content
	}
	var sb strings.Builder
	sb.WriteString(t.Content)
	sb.WriteString("\n\n")
	if t.AttachmentName != "" {
		sb.WriteString("Attached file (")
		sb.WriteString(t.AttachmentName)
		sb.WriteString("):\n")
	} else {
		sb.WriteString("Attached file:\n")
	}
	sb.WriteString(attachment)
	return sb.String()
}

// =============================================================================
// PUBLICATION
// =============================================================================

// Publication is the retrievable public reference of a stored artifact.
type Publication struct {
	ID  string `json:"artifact_id"`
	URL string `json:"url"`
}
