package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilnworks/autodev/internal/model"
)

func TestBuildInitializerPrompt_SubstitutesVars(t *testing.T) {
	proj := &model.Project{Name: "Widget Factory", Spec: "Build a widget API."}
	prompt := buildInitializerPrompt(proj)

	assert.Contains(t, prompt, "Widget Factory")
	assert.Contains(t, prompt, "Build a widget API.")
	assert.Contains(t, prompt, "feature_list.json")
}

func TestBuildCodingPrompt_SubstitutesVars(t *testing.T) {
	proj := &model.Project{Name: "Widget Factory", Spec: "Build a widget API."}
	prompt := buildCodingPrompt(proj)

	assert.Contains(t, prompt, "Widget Factory")
	assert.Contains(t, prompt, "[HUMAN_HELP]")
}

func TestBuildReviewPrompt_ListsSelectedFeatures(t *testing.T) {
	proj := &model.Project{Name: "Widget Factory"}
	features := []model.Feature{
		{ID: "f1", Category: "api", Description: "expose /widgets"},
		{ID: "f2", Category: "db", Description: "add widgets table"},
	}

	prompt := buildReviewPrompt(proj, features, "tighten the validation rules")

	assert.Contains(t, prompt, "expose /widgets")
	assert.Contains(t, prompt, "add widgets table")
	assert.Contains(t, prompt, "tighten the validation rules")
}

func TestRenderTemplate_LeavesUnknownPlaceholdersAlone(t *testing.T) {
	out := renderTemplate("hello {{name}}, {{unset}}", map[string]string{"name": "world"})
	assert.Equal(t, "hello world, {{unset}}", out)
}
