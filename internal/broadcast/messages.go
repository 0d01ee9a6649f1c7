package broadcast

import "github.com/kilnworks/autodev/internal/model"

// MessageType discriminates the Message variants of spec §4.7.
type MessageType string

const (
	MessageLog           MessageType = "log"
	MessageStatus        MessageType = "status"
	MessageProgress      MessageType = "progress"
	MessageFeaturesSync  MessageType = "features_sync"
	MessageFeatureUpdate MessageType = "feature_update"
	MessageSessionUpdate MessageType = "session_update"
	MessageAgentCount    MessageType = "agent_count"
	MessageHumanHelp     MessageType = "human_help"
)

// Message is one server-to-client frame. Every variant carries ProjectID;
// exactly one of the payload fields is populated, selected by Type.
type Message struct {
	Type      MessageType        `json:"type"`
	ProjectID string             `json:"projectId"`
	Log       *model.LogEntry    `json:"log,omitempty"`
	Status    model.ProjectStatus `json:"status,omitempty"`
	Progress  *model.Progress    `json:"progress,omitempty"`
	Features  []model.Feature    `json:"features,omitempty"`
	FeatureID string             `json:"featureId,omitempty"`
	Passes    bool               `json:"passes,omitempty"`
	Session   *model.Session     `json:"session,omitempty"`
	Active    int                `json:"active,omitempty"`
	Total     int                `json:"total,omitempty"`
	HelpReq   *model.HelpRequest `json:"helpRequest,omitempty"`
}

func LogMessage(projectID string, entry model.LogEntry) Message {
	return Message{Type: MessageLog, ProjectID: projectID, Log: &entry}
}

func StatusMessage(projectID string, status model.ProjectStatus) Message {
	return Message{Type: MessageStatus, ProjectID: projectID, Status: status}
}

func ProgressMessage(projectID string, p model.Progress) Message {
	return Message{Type: MessageProgress, ProjectID: projectID, Progress: &p}
}

func FeaturesSyncMessage(projectID string, features []model.Feature) Message {
	return Message{Type: MessageFeaturesSync, ProjectID: projectID, Features: features}
}

func FeatureUpdateMessage(projectID, featureID string, passes bool) Message {
	return Message{Type: MessageFeatureUpdate, ProjectID: projectID, FeatureID: featureID, Passes: passes}
}

func SessionUpdateMessage(projectID string, sess model.Session) Message {
	return Message{Type: MessageSessionUpdate, ProjectID: projectID, Session: &sess}
}

func AgentCountMessage(projectID string, active, total int) Message {
	return Message{Type: MessageAgentCount, ProjectID: projectID, Active: active, Total: total}
}

func HumanHelpMessage(projectID string, req model.HelpRequest) Message {
	return Message{Type: MessageHumanHelp, ProjectID: projectID, HelpReq: &req}
}
