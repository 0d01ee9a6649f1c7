package orchestrator

import (
	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/statemachine"
	"github.com/kilnworks/autodev/internal/watcher"
)

// WatcherCallbacks builds the watcher.Callbacks set an Orchestrator
// expects to be constructed with. The watcher and the orchestrator hold
// references to each other (the watcher reports into the orchestrator,
// the orchestrator starts/stops the watcher), so callers must close over
// a not-yet-constructed *Orchestrator pointer:
//
//	var orch *Orchestrator
//	wt := watcher.New(st, orchestrator.WatcherCallbacks(&orch), log)
//	orch = orchestrator.New(st, registry, hub, git, wt, launcher, cfg, log)
func WatcherCallbacks(orch **Orchestrator) watcher.Callbacks {
	return watcher.Callbacks{
		OnFeaturesSync: func(projectID string, features []model.Feature) {
			(*orch).onWatcherFeaturesSync(projectID, features)
		},
		OnProgress: func(projectID string, progress model.Progress) {
			(*orch).onWatcherProgress(projectID, progress)
		},
		OnCompleted: func(projectID string) {
			(*orch).onWatcherCompleted(projectID)
		},
	}
}

func (o *Orchestrator) onWatcherFeaturesSync(projectID string, features []model.Feature) {
	o.hub.Publish(broadcast.FeaturesSyncMessage(projectID, features))
}

func (o *Orchestrator) onWatcherProgress(projectID string, progress model.Progress) {
	o.hub.Publish(broadcast.ProgressMessage(projectID, progress))
}

func (o *Orchestrator) onWatcherCompleted(projectID string) {
	_, _ = o.transitionProject(projectID, statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: true})
}
