package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/model"
)

// humanHelpMarker is the literal prefix an agent's text output uses to
// signal it cannot make progress and needs an operator.
const humanHelpMarker = "[HUMAN_HELP]"

// scanForHumanHelp reports whether text (an EventText/EventSystem
// content string) begins with the human-help marker, and the message
// that follows it.
func scanForHumanHelp(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, humanHelpMarker) {
		return false, ""
	}
	return true, strings.TrimSpace(strings.TrimPrefix(trimmed, humanHelpMarker))
}

// raiseHelpRequest persists a help request (explicit marker or detected
// loop), snapshots the trailing non-temporary log lines for context, and
// broadcasts it to subscribers.
func (o *Orchestrator) raiseHelpRequest(projectID, sessionID string, agentIndex int, featureID, message string) error {
	snapshot, err := o.tailNonTemporaryLogs(projectID, model.HelpSnapshotLines)
	if err != nil {
		o.logger.WithError(err).Warn("failed to snapshot logs for help request")
	}

	req := model.HelpRequest{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		SessionID:   sessionID,
		AgentIndex:  agentIndex,
		Message:     message,
		Status:      model.HelpPending,
		CreatedAt:   time.Now(),
		FeatureID:   featureID,
		LogSnapshot: snapshot,
	}

	if featureID != "" {
		if f := o.lookupFeature(projectID, featureID); f != nil {
			req.FeatureDesc = f.Description
		}
	}

	if err := o.store.AppendHelpRequest(req); err != nil {
		return err
	}
	o.hub.Publish(broadcast.HumanHelpMessage(projectID, req))
	return nil
}

// tailNonTemporaryLogs returns up to n of the most recent non-temporary
// log entries for projectID, oldest first.
func (o *Orchestrator) tailNonTemporaryLogs(projectID string, n int) ([]model.LogEntry, error) {
	all, err := o.store.ReadLogs(projectID)
	if err != nil {
		return nil, err
	}
	var kept []model.LogEntry
	for _, e := range all {
		if !e.Temporary {
			kept = append(kept, e)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept, nil
}

// lookupFeature returns the cached feature matching featureID, or nil if
// unknown or the cache cannot be read.
func (o *Orchestrator) lookupFeature(projectID, featureID string) *model.Feature {
	features, err := o.store.LoadFeaturesCache(projectID)
	if err != nil {
		return nil
	}
	for i := range features {
		if features[i].ID == featureID {
			return &features[i]
		}
	}
	return nil
}
