package model

import "time"

type SessionKind string

const (
	SessionKindInitializer SessionKind = "initializer"
	SessionKindCoding      SessionKind = "coding"
	SessionKindAgentTeams  SessionKind = "agent-teams"
)

type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

// Reserved agent indices that never collide with the main concurrency slots
// (which run 0..7, clamped by Project.Concurrency <= 8).
const (
	AgentIndexReview = 98
	AgentIndexAppend = 99
)

// Session is the lifecycle record of a single child-process invocation.
type Session struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"projectId"`
	Kind       SessionKind   `json:"kind"`
	Status     SessionStatus `json:"status"`
	AgentIndex *int          `json:"agentIndex,omitempty"`
	FeatureID  string        `json:"featureId,omitempty"`
	Branch     string        `json:"branch,omitempty"`
	PID        int           `json:"pid,omitempty"`
	RawLogPath string        `json:"rawLogPath,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    *time.Time    `json:"endedAt,omitempty"`
}
