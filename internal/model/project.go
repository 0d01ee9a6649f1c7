// Package model holds the persistent record types shared by the
// orchestrator, store, and API packages.
package model

import "time"

// ProjectStatus is the authoritative lifecycle state of a project.
// Transitions are only ever produced by the statemachine package.
type ProjectStatus string

const (
	StatusIdle         ProjectStatus = "idle"
	StatusInitializing ProjectStatus = "initializing"
	StatusReviewing     ProjectStatus = "reviewing"
	StatusRunning      ProjectStatus = "running"
	StatusPaused       ProjectStatus = "paused"
	StatusCompleted    ProjectStatus = "completed"
	StatusError        ProjectStatus = "error"
)

// Project is the top-level unit of orchestration: one working directory,
// one provider, one spec.
type Project struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Spec               string            `json:"spec"`
	Status             ProjectStatus     `json:"status"`
	Provider           string            `json:"provider"`
	Settings           map[string]any    `json:"settings,omitempty"`
	Model              string            `json:"model,omitempty"`
	Concurrency        int               `json:"concurrency"`
	UseAgentTeams      bool              `json:"useAgentTeams"`
	SystemPrompt       string            `json:"systemPrompt,omitempty"`
	ReviewBeforeCoding bool              `json:"reviewBeforeCoding"`
	ProjectDir         string            `json:"projectDir"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// ClampConcurrency enforces the [1,8] invariant on Concurrency.
func (p *Project) ClampConcurrency() {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.Concurrency > 8 {
		p.Concurrency = 8
	}
}
