package model

import "time"

type HelpStatus string

const (
	HelpPending  HelpStatus = "pending"
	HelpResolved HelpStatus = "resolved"
)

// HelpRequest is surfaced to the operator when an agent cannot proceed,
// either via an explicit [HUMAN_HELP] marker or a detected loop.
type HelpRequest struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	SessionID   string      `json:"sessionId"`
	AgentIndex  int         `json:"agentIndex"`
	Message     string      `json:"message"`
	Status      HelpStatus  `json:"status"`
	Response    string      `json:"response,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ResolvedAt  *time.Time  `json:"resolvedAt,omitempty"`
	FeatureID   string      `json:"featureId,omitempty"`
	FeatureDesc string      `json:"featureDescription,omitempty"`
	LogSnapshot []LogEntry  `json:"logSnapshot,omitempty"`
}

// HelpSnapshotLines is how many trailing non-temporary log lines are
// captured into a help request's LogSnapshot.
const HelpSnapshotLines = 8
