package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/procattr"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/statemachine"
	"github.com/kilnworks/autodev/internal/store"
)

// transitionProject runs ev through the state machine against
// projectID's current status, persists and broadcasts the new status if
// it changed, and stops the feature watcher when the machine asks for
// it. It returns the (possibly updated) project.
func (o *Orchestrator) transitionProject(projectID string, ev statemachine.Event) (*model.Project, error) {
	proj, err := o.store.LoadProject(projectID)
	if err != nil {
		return nil, errs.NotFound("project", projectID)
	}

	result := statemachine.Transition(proj.Status, ev)
	if result.Changed {
		proj.Status = result.NewStatus
		if err := o.store.SaveProject(proj); err != nil {
			return nil, err
		}
		o.hub.Publish(broadcast.StatusMessage(projectID, proj.Status))
	}
	if result.StopWatcher {
		o.watcher.Stop(projectID)
	}
	return proj, nil
}

func (o *Orchestrator) adapterFor(proj *model.Project) (provider.Adapter, error) {
	adapter, ok := o.registry.Get(proj.Provider)
	if !ok {
		return nil, errs.InvalidInput(fmt.Sprintf("unknown provider %q", proj.Provider))
	}
	return adapter, nil
}

// StartAgent begins (or resumes) work on a project: an uninitialized
// project gets an initializer session, an initialized one goes straight
// to coding (or a single agent-teams session).
func (o *Orchestrator) StartAgent(ctx context.Context, projectID string) error {
	if o.IsRunning(projectID) {
		return errs.AlreadyRunning(projectID)
	}

	proj, err := o.store.LoadProject(projectID)
	if err != nil {
		return errs.NotFound("project", projectID)
	}
	adapter, err := o.adapterFor(proj)
	if err != nil {
		return err
	}

	features, err := store.ReadFeatureList(proj.ProjectDir)
	if err != nil {
		return errs.Internal("reading feature list", err)
	}

	proj, err = o.transitionProject(projectID, statemachine.Event{
		Kind:           statemachine.EventStart,
		HasInitialized: len(features) > 0,
	})
	if err != nil {
		return err
	}

	if proj.Status == model.StatusInitializing {
		return o.startInitializer(proj, adapter)
	}
	return o.resumeCoding(proj, adapter)
}

// resumeCoding starts the watcher and either a single agent-teams session
// or a full coding round across proj.Concurrency slots.
func (o *Orchestrator) resumeCoding(proj *model.Project, adapter provider.Adapter) error {
	o.watcher.Start(proj.ID, proj.ProjectDir)
	if proj.UseAgentTeams {
		return o.startAgentTeams(proj, adapter)
	}
	return o.startCodingRound(proj, adapter)
}

// ConfirmReview moves a project out of reviewing and into coding, used
// after a human has looked over the initializer's feature_list.json.
func (o *Orchestrator) ConfirmReview(projectID string) error {
	proj, err := o.transitionProject(projectID, statemachine.Event{Kind: statemachine.EventReviewConfirmed})
	if err != nil {
		return err
	}
	if proj.Status != model.StatusRunning {
		return errs.InvalidInput("project is not awaiting review confirmation")
	}
	adapter, err := o.adapterFor(proj)
	if err != nil {
		return err
	}
	return o.resumeCoding(proj, adapter)
}

// StopAgent signals every running agent for a project to stop, escalating
// to SIGKILL after the configured grace period, and transitions the
// project to paused once that grace period has elapsed, whether or not
// every process has exited.
func (o *Orchestrator) StopAgent(projectID string) error {
	ps := o.stateFor(projectID)

	ps.mu.Lock()
	instances := make([]*agentInstance, 0, len(ps.agents))
	for _, inst := range ps.agents {
		instances = append(instances, inst)
	}
	for idx, ch := range ps.pendingChain {
		close(ch)
		delete(ps.pendingChain, idx)
	}
	ps.mu.Unlock()

	if len(instances) == 0 {
		o.stopPersistedRunningSessions(projectID)
		_, err := o.transitionProject(projectID, statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true})
		return err
	}

	for _, inst := range instances {
		inst.stopped = true
		if inst.cancel != nil {
			inst.cancel()
		}
		if err := procattr.Terminate(inst.pid); err != nil {
			o.logger.WithError(err).Warn("SIGTERM failed during stop")
		}
	}

	grace := o.cfg.StopGrace()
	pids := pidsOf(instances)
	go func() {
		time.Sleep(grace)
		for _, pid := range pids {
			if procattr.IsAlive(pid) {
				_ = procattr.Kill(pid)
			}
		}
		_, _ = o.transitionProject(projectID, statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true})
	}()

	return nil
}

func pidsOf(instances []*agentInstance) []int {
	out := make([]int, len(instances))
	for i, inst := range instances {
		out[i] = inst.pid
	}
	return out
}
