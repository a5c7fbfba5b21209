package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiforge/internal/schema"
	"uiforge/internal/types"
)

func TestCompose_ContainsRoleForEveryStage(t *testing.T) {
	for _, stage := range types.AllStages {
		for _, category := range append([]types.ProblemCategory{types.CategoryUnknown}, types.KnownCategories...) {
			p, err := Compose(stage, "payload", category)
			require.NoError(t, err)

			role, ok := Role(stage)
			require.True(t, ok)
			assert.Contains(t, p.System, role, "stage=%s category=%s", stage, category)
		}
	}
}

func TestCompose_CategoryRequirement(t *testing.T) {
	for _, category := range types.KnownCategories {
		req, ok := CategoryRequirement(category)
		require.True(t, ok, "no requirement for %s", category)

		for _, stage := range types.AllStages {
			p, err := Compose(stage, "payload", category)
			require.NoError(t, err)

			if stage.CategoryAware() {
				assert.Contains(t, p.System, req, "stage=%s category=%s", stage, category)
			} else {
				assert.NotContains(t, p.System, req, "stage=%s category=%s", stage, category)
			}
			assert.NotContains(t, p.User, req)
		}
	}
}

func TestCompose_UnknownCategoryLeavesRoleUnmodified(t *testing.T) {
	p, err := Compose(types.StageUIBuild, "payload", types.CategoryUnknown)
	require.NoError(t, err)
	assert.Equal(t, uiBuilderRole+"\n", p.System)

	_, ok := CategoryRequirement(types.ProblemCategory("speech_synthesis"))
	assert.False(t, ok)
}

func TestCompose_PayloadStaysInUserContent(t *testing.T) {
	spec := types.TaskSpecification{Content: "Classify images into 1000 categories"}
	p, err := Compose(types.StageTaskAnalysis, spec, types.CategoryUnknown)
	require.NoError(t, err)

	assert.Contains(t, p.User, "Task Specification: Classify images into 1000 categories")
	assert.NotContains(t, p.System, "Classify images into 1000 categories")
}

func TestCompose_StructuredPayloadIsJSON(t *testing.T) {
	plan := &schema.UIPlan{Meta: schema.TaskMeta{Title: "Image Classifier", Description: "d"}}
	p, err := Compose(types.StageUIBuild, plan, types.CategoryImageClassification)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.User, "Given the following task structure, generate the corresponding UI code:"))
	assert.Contains(t, p.User, `"title": "Image Classifier"`)
}

func TestCompose_Errors(t *testing.T) {
	_, err := Compose(types.StageKind("ui_painter"), "x", types.CategoryUnknown)
	assert.Error(t, err)

	_, err = Compose(types.StageUIPlan, nil, types.CategoryUnknown)
	assert.Error(t, err)
}

func TestCompose_Deterministic(t *testing.T) {
	a, err := Compose(types.StageUICritique, "code", types.CategoryObjectDetection)
	require.NoError(t, err)
	b, err := Compose(types.StageUICritique, "code", types.CategoryObjectDetection)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
