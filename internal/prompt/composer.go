// Package prompt builds the exact instruction text sent to the completion
// service for each pipeline stage.
//
// A composed prompt has two parts. The system part is the stage's fixed role
// description, extended for the UI builder and UI critic with the requirement
// text of the task's problem category. The user part frames the stage payload
// (task specification, analysis, plan or code) and is never merged into the
// system part.
package prompt

import (
	"fmt"
	"strings"

	"uiforge/internal/schema"
	"uiforge/internal/types"
)

// Prompt is a composed system/user message pair.
type Prompt struct {
	System string
	User   string
}

var userTemplates = map[types.StageKind]string{
	types.StageTaskAnalysis: "Analyze the following task.yaml file and extract its structure into a well-formatted JSON object:\n\nTask Specification: %s",
	types.StageUIPlan:       "Given the following task structure, generate the corresponding UI Blueprint:\n\nTask Description: %s",
	types.StageUIBuild:      "Given the following task structure, generate the corresponding UI code:\n\nTask Description: %s",
	types.StageUICritique:   "Review the following UI code and improve it:\n\n%s",
}

// Compose builds the prompt for a stage. Payloads that are not strings or
// task specifications are rendered as indented JSON. Compose has no side
// effects.
func Compose(stage types.StageKind, payload interface{}, category types.ProblemCategory) (Prompt, error) {
	system, err := SystemInstruction(stage, category)
	if err != nil {
		return Prompt{}, err
	}

	text, err := payloadText(payload)
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		System: system,
		User:   fmt.Sprintf(userTemplates[stage], text),
	}, nil
}

// SystemInstruction returns the role text of a stage, with the category
// requirement appended for category-aware stages when one exists.
func SystemInstruction(stage types.StageKind, category types.ProblemCategory) (string, error) {
	role, ok := Role(stage)
	if !ok {
		return "", fmt.Errorf("unknown stage: %s", stage)
	}

	var sb strings.Builder
	sb.WriteString(role)
	sb.WriteString("\n")
	if stage.CategoryAware() {
		if req, ok := CategoryRequirement(category); ok {
			sb.WriteString("\n")
			sb.WriteString(req)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func payloadText(payload interface{}) (string, error) {
	switch p := payload.(type) {
	case string:
		return p, nil
	case types.TaskSpecification:
		return p.Text(), nil
	case *types.TaskSpecification:
		return p.Text(), nil
	case nil:
		return "", fmt.Errorf("payload is required")
	default:
		return schema.Marshal(p)
	}
}
