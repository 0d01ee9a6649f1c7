package orchestrator

import (
	"fmt"
	"strings"

	"github.com/kilnworks/autodev/internal/model"
)

// Prompt template content itself is an external collaborator concern
// (spec §1 "deliberately out of scope": prompt template content); what
// belongs to this module is the substitution mechanics. A named template
// is a format string with {{var}} placeholders, applied via
// strings.NewReplacer rather than text/template — no third-party or even
// stdlib templating engine appears anywhere in the example pack for this
// concern, so the lightest mechanism that satisfies "named template with
// project variables substituted" is used.

const initializerTemplate = `You are initializing a new project.

Project: {{name}}
Specification:
{{spec}}

Decompose this specification into a granular feature_list.json file at
the root of the working directory, either as a bare JSON array or as
{"features": [...]}, where each feature has: id, category, description,
steps, passes (false), inProgress (false).`

const codingTemplate = `You are an autonomous coding agent working on: {{name}}

Specification:
{{spec}}

Claim and implement the next unfinished feature from feature_list.json.
When a feature's tests pass, set its "passes" field to true. If you
cannot make progress, emit a line beginning with [HUMAN_HELP] describing
what you are stuck on.`

const agentTeamsTemplate = `You are coordinating a team of sub-agents to build: {{name}}

Specification:
{{spec}}

Work through feature_list.json end to end, delegating sub-tasks
internally rather than expecting an external fan-out. Mark each
feature's "passes" field true once its tests pass.`

const reviewTemplate = `A human reviewer has selected the following features for revision in
project {{name}}:

{{features}}

Reviewer instruction:
{{instruction}}

Update the implementation and feature_list.json accordingly.`

func renderTemplate(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func buildInitializerPrompt(proj *model.Project) string {
	return renderTemplate(initializerTemplate, map[string]string{
		"name": proj.Name,
		"spec": proj.Spec,
	})
}

func buildCodingPrompt(proj *model.Project) string {
	return renderTemplate(codingTemplate, map[string]string{
		"name": proj.Name,
		"spec": proj.Spec,
	})
}

func buildAgentTeamsPrompt(proj *model.Project) string {
	return renderTemplate(agentTeamsTemplate, map[string]string{
		"name": proj.Name,
		"spec": proj.Spec,
	})
}

func buildReviewPrompt(proj *model.Project, features []model.Feature, instruction string) string {
	var b strings.Builder
	for _, f := range features {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", f.ID, f.Category, f.Description)
	}
	return renderTemplate(reviewTemplate, map[string]string{
		"name":        proj.Name,
		"features":    b.String(),
		"instruction": instruction,
	})
}
