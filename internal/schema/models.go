package schema

import (
	"net/url"
	"strings"

	"uiforge/internal/types"
)

// =============================================================================
// TASK ANALYZER OUTPUT
// =============================================================================

// TaskAnalysis is the structured output of the task analysis stage.
type TaskAnalysis struct {
	TaskType      TaskTypeInfo  `json:"task_type"`
	InputOutput   InputOutput   `json:"input_output"`
	ModelInfo     ModelInfo     `json:"model_info"`
	Visualization Visualization `json:"visualization"`
	Dataset       *Dataset      `json:"dataset,omitempty"`
}

// TaskTypeInfo names the classified ML task.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// InputOutput describes what the model consumes and produces.
type InputOutput struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// InputFormatField describes one key of the model's request body.
type InputFormatField struct {
	Type        string `json:"type"`
	Encoding    string `json:"encoding,omitempty"`
	Description string `json:"description,omitempty"`
}

// InputFormat describes the model's request body.
type InputFormat struct {
	Type      string                      `json:"type"`
	Structure map[string]InputFormatField `json:"structure"`
}

// OutputFormat describes the model's response body.
type OutputFormat struct {
	Type           string            `json:"type"`
	Description    string            `json:"description,omitempty"`
	PostProcessing map[string]string `json:"post_processing,omitempty"`
	Guidance       []string          `json:"guidance,omitempty"`
}

// ModelInfo locates the inference endpoint and its wire formats.
type ModelInfo struct {
	APIURL       string       `json:"api_url"`
	Name         string       `json:"name"`
	InputFormat  InputFormat  `json:"input_format"`
	OutputFormat OutputFormat `json:"output_format"`
}

// VisualizationField is one displayed field of a feature.
type VisualizationField struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// VisualizationFeature is one UI capability requested by the task.
type VisualizationFeature struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Fields      []VisualizationField `json:"fields,omitempty"`
	Steps       []string             `json:"steps,omitempty"`
}

// Visualization groups the requested visual features.
type Visualization struct {
	Description string                 `json:"description"`
	Features    []VisualizationFeature `json:"features"`
}

// Dataset describes the data the model was trained or evaluated on.
type Dataset struct {
	DataPath         string   `json:"data_path"`
	Description      string   `json:"description"`
	SupportedFormats []string `json:"supported_formats"`
	OtherData        string   `json:"other_data,omitempty"`
}

// Stage implements Output.
func (a *TaskAnalysis) Stage() types.StageKind { return types.StageTaskAnalysis }

// Category returns the problem category named by task_type.type.
func (a *TaskAnalysis) Category() types.ProblemCategory {
	if a == nil {
		return types.CategoryUnknown
	}
	return types.ParseCategory(a.TaskType.Type)
}

var featureNames = []string{"list_display", "input_function"}

// Validate checks that every required field is present.
func (a *TaskAnalysis) Validate() error {
	v := newValidator("TaskAnalysis")
	v.required("task_type.type", a.TaskType.Type)
	v.required("task_type.description", a.TaskType.Description)
	v.required("input_output.input", a.InputOutput.Input)
	v.required("input_output.output", a.InputOutput.Output)

	v.url("model_info.api_url", a.ModelInfo.APIURL)
	v.required("model_info.name", a.ModelInfo.Name)
	v.required("model_info.input_format.type", a.ModelInfo.InputFormat.Type)
	if a.ModelInfo.InputFormat.Structure == nil {
		v.missing("model_info.input_format.structure")
	}
	for key, field := range a.ModelInfo.InputFormat.Structure {
		v.required("model_info.input_format.structure."+key+".type", field.Type)
	}
	v.required("model_info.output_format.type", a.ModelInfo.OutputFormat.Type)

	v.required("visualization.description", a.Visualization.Description)
	if a.Visualization.Features == nil {
		v.missing("visualization.features")
	}
	for i, f := range a.Visualization.Features {
		path := indexed("visualization.features", i)
		v.oneOf(path+".name", f.Name, featureNames)
		v.required(path+".description", f.Description)
	}

	if a.Dataset != nil {
		v.required("dataset.data_path", a.Dataset.DataPath)
		v.required("dataset.description", a.Dataset.Description)
		if a.Dataset.SupportedFormats == nil {
			v.missing("dataset.supported_formats")
		}
	}
	return v.err()
}

// =============================================================================
// UI PLANNER OUTPUT
// =============================================================================

// UIPlan is the structured UI blueprint produced by the planning stage.
type UIPlan struct {
	TaskType      string         `json:"task_type,omitempty"`
	Meta          TaskMeta       `json:"meta"`
	InputSpec     IOSpec         `json:"input_spec"`
	OutputSpec    IOSpec         `json:"output_spec"`
	Model         PlanModel      `json:"model"`
	UIHints       UIHints        `json:"ui_hints"`
	Visualization PlanVisual     `json:"visualization"`
	DatasetInfo   *DatasetInfo   `json:"dataset_info,omitempty"`
	Accessibility *Accessibility `json:"accessibility,omitempty"`
	ErrorHandling *ErrorHandling `json:"error_handling,omitempty"`
}

// TaskMeta carries the page title and description.
type TaskMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// IOField is one input control or output display.
type IOField struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Accept   []string `json:"accept,omitempty"`
	Multiple bool     `json:"multiple,omitempty"`
	Optional bool     `json:"optional,omitempty"`
	HelpText string   `json:"help_text,omitempty"`
	Format   string   `json:"format,omitempty"`
}

// IOSpec lists the fields of one side of the interaction.
type IOSpec struct {
	Description string    `json:"description"`
	Types       []IOField `json:"types"`
}

// ModelFormat maps body field names to their types or descriptions.
type ModelFormat struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

// PlanModel is the inference endpoint as the UI will call it.
type PlanModel struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	APIURL       string      `json:"api_url"`
	Method       string      `json:"method"`
	InputFormat  ModelFormat `json:"input_format"`
	OutputFormat ModelFormat `json:"output_format"`
}

// UIHints steers layout and component choice.
type UIHints struct {
	Layout     string            `json:"layout"`
	Components []string          `json:"components"`
	Theme      map[string]string `json:"theme,omitempty"`
}

// PlanFeature is one visual feature in the blueprint.
type PlanFeature struct {
	Description string   `json:"description"`
	Steps       []string `json:"steps,omitempty"`
	Fields      []string `json:"fields,omitempty"`
}

// PlanVisual keys features by name.
type PlanVisual struct {
	Features map[string]PlanFeature `json:"features"`
}

// DatasetInfo is the dataset section shown in the UI.
type DatasetInfo struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Path        string `json:"path"`
	Format      string `json:"format"`
}

// Accessibility toggles. Absent toggles default to enabled.
type Accessibility struct {
	Keyboard        *bool `json:"keyboard,omitempty"`
	ScreenReader    *bool `json:"screen_reader,omitempty"`
	AltTextRequired *bool `json:"alt_text_required,omitempty"`
}

// ErrorHandling holds user-facing error messages.
type ErrorHandling struct {
	InvalidInput string `json:"invalid_input,omitempty"`
	MissingInput string `json:"missing_input,omitempty"`
	APIError     string `json:"api_error,omitempty"`
}

var (
	ioFieldTypes = []string{"file", "text", "image", "audio", "number", "list", "label"}
	httpMethods  = []string{"POST", "GET"}
	layouts      = []string{"responsive_card", "wizard", "dashboard"}
)

// Stage implements Output.
func (p *UIPlan) Stage() types.StageKind { return types.StageUIPlan }

// Validate checks that every required field is present.
func (p *UIPlan) Validate() error {
	v := newValidator("UIPlan")
	v.required("meta.title", p.Meta.Title)
	v.required("meta.description", p.Meta.Description)

	validateIOSpec(v, "input_spec", p.InputSpec)
	validateIOSpec(v, "output_spec", p.OutputSpec)

	v.required("model.name", p.Model.Name)
	v.required("model.api_url", p.Model.APIURL)
	v.oneOf("model.method", strings.ToUpper(p.Model.Method), httpMethods)
	validateModelFormat(v, "model.input_format", p.Model.InputFormat)
	validateModelFormat(v, "model.output_format", p.Model.OutputFormat)

	v.oneOf("ui_hints.layout", p.UIHints.Layout, layouts)
	if p.UIHints.Components == nil {
		v.missing("ui_hints.components")
	}

	if p.Visualization.Features == nil {
		v.missing("visualization.features")
	}
	for name, f := range p.Visualization.Features {
		v.required("visualization.features."+name+".description", f.Description)
	}

	if p.DatasetInfo != nil {
		v.required("dataset_info.path", p.DatasetInfo.Path)
		v.required("dataset_info.format", p.DatasetInfo.Format)
	}
	return v.err()
}

func validateIOSpec(v *validator, path string, spec IOSpec) {
	v.required(path+".description", spec.Description)
	if spec.Types == nil {
		v.missing(path + ".types")
	}
	for i, f := range spec.Types {
		p := indexed(path+".types", i)
		v.required(p+".name", f.Name)
		v.oneOf(p+".type", f.Type, ioFieldTypes)
	}
}

func validateModelFormat(v *validator, path string, f ModelFormat) {
	v.oneOf(path+".type", f.Type, []string{"json"})
	if f.Fields == nil {
		v.missing(path + ".fields")
	}
}

// =============================================================================
// UI BUILDER OUTPUT
// =============================================================================

// UIArtifact is the generated web UI. The model emits it with the keys
// html, css and js.
type UIArtifact struct {
	Markup string `json:"html"`
	Styles string `json:"css"`
	Script string `json:"js"`
}

// Stage implements Output.
func (u *UIArtifact) Stage() types.StageKind { return types.StageUIBuild }

// Validate checks that the markup is present. Styles and script may be empty
// strings when the markup inlines them, but their keys are still required.
func (u *UIArtifact) Validate() error {
	v := newValidator("UIArtifact")
	v.required("html", u.Markup)
	return v.err()
}

// isAbsoluteURL reports whether s parses as an absolute http(s) URL.
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
