// Package schema is the registry of structured-output shapes, one per
// pipeline stage. Shapes are used both to ask the completion service for
// machine-parseable output and to validate what comes back.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"uiforge/internal/types"
)

// Output is a decoded, shape-checked stage result.
type Output interface {
	Stage() types.StageKind
	Validate() error
}

// Shape describes the expected structured output of one stage.
type Shape struct {
	Name      string
	required  []string
	raw       map[string]interface{}
	newOutput func() Output
}

// JSONSchema returns the JSON schema for the shape. The map is shared and
// must not be mutated.
func (s Shape) JSONSchema() map[string]interface{} {
	return s.raw
}

// Required returns the top-level keys that must be present.
func (s Shape) Required() []string {
	return append([]string(nil), s.required...)
}

// Decode parses raw completion text into the shape's Go type and validates
// it. Any mismatch is reported as a *ValidationError.
func (s Shape) Decode(raw string) (Output, error) {
	text := ExtractJSON(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, &ValidationError{Shape: s.Name, Problems: []string{"response is not a JSON object: " + err.Error()}}
	}

	var problems []string
	for _, key := range s.required {
		v, ok := top[key]
		if !ok || strings.TrimSpace(string(v)) == "null" {
			problems = append(problems, key+" is required")
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Shape: s.Name, Problems: problems}
	}

	out := s.newOutput()
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return nil, &ValidationError{Shape: s.Name, Problems: []string{err.Error()}}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	registryOnce sync.Once
	registry     map[types.StageKind]Shape
)

// ShapeFor returns the output shape of a stage. The UI critic revises the
// generated code, so it shares the UI builder's shape.
func ShapeFor(stage types.StageKind) (Shape, bool) {
	registryOnce.Do(buildRegistry)
	s, ok := registry[stage]
	return s, ok
}

func buildRegistry() {
	analysis := newShape[TaskAnalysis]("TaskAnalysis", func() Output { return &TaskAnalysis{} })
	plan := newShape[UIPlan]("UIPlan", func() Output { return &UIPlan{} })
	artifact := newShape[UIArtifact]("UIArtifact", func() Output { return &UIArtifact{} })

	registry = map[types.StageKind]Shape{
		types.StageTaskAnalysis: analysis,
		types.StageUIPlan:       plan,
		types.StageUIBuild:      artifact,
		types.StageUICritique:   artifact,
	}
}

func newShape[T any](name string, factory func() Output) Shape {
	s := Shape{Name: name, newOutput: factory}

	js, err := jsonschema.For[T](nil)
	if err == nil {
		s.required = append(s.required, js.Required...)
		if data, err := json.Marshal(js); err == nil {
			_ = json.Unmarshal(data, &s.raw)
		}
	}
	if s.raw == nil {
		// Minimal fallback so providers still receive an object hint.
		s.raw = map[string]interface{}{"type": "object"}
	}
	return s
}

// DecodeArtifact parses text as a UIArtifact.
func DecodeArtifact(raw string) (*UIArtifact, error) {
	shape, _ := ShapeFor(types.StageUIBuild)
	out, err := shape.Decode(raw)
	if err != nil {
		return nil, err
	}
	return out.(*UIArtifact), nil
}

// ExtractJSON trims whitespace and a surrounding markdown code fence, if any.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the info string (```json).
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Marshal renders a stage output or payload as indented JSON, the canonical
// text form handed to the completion service. Markup is not HTML-escaped.
func Marshal(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
