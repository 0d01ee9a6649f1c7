package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kilnworks/autodev/internal/common/appctx"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/statemachine"
	"github.com/kilnworks/autodev/internal/store"
)

// startCodingRound fills every concurrency slot of proj with a coding
// session, each claiming its own feature. A project with no unclaimed
// features left and none in flight is immediately marked complete.
func (o *Orchestrator) startCodingRound(proj *model.Project, adapter provider.Adapter) error {
	features, err := store.ReadFeatureList(proj.ProjectDir)
	if err != nil {
		return err
	}
	if len(features) > 0 && model.AllDone(features) {
		_, err := o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: true})
		return err
	}

	// Fan the initial claim-and-launch attempt for every slot out
	// concurrently: each slot does its own ReadFeatureList/claim/spawn
	// round trip, and with Concurrency capped at 8 (model.ClampConcurrency)
	// an errgroup of that size never needs its own semaphore.
	var g errgroup.Group
	for i := 0; i < proj.Concurrency; i++ {
		agentIndex := i
		g.Go(func() error {
			o.spawnNextCoding(proj, adapter, agentIndex)
			return nil
		})
	}
	return g.Wait()
}

// claimNextFeature picks the first feature that is neither passing nor
// already claimed by another agent, claims it for agentIndex, and
// returns it. ok is false if nothing is available to claim.
func (o *Orchestrator) claimNextFeature(ps *projectState, projectDir string, agentIndex int) (model.Feature, bool) {
	features, err := store.ReadFeatureList(projectDir)
	if err != nil {
		return model.Feature{}, false
	}
	for _, f := range features {
		if f.Passes || f.InProgress {
			continue
		}
		if ps.claimFeature(f.ID, agentIndex) {
			return f, true
		}
	}
	return model.Feature{}, false
}

// spawnNextCoding claims the next available feature for agentIndex and
// launches a coding session for it. If nothing is left to claim, it
// checks whether the project is now fully done.
func (o *Orchestrator) spawnNextCoding(proj *model.Project, adapter provider.Adapter, agentIndex int) {
	ps := o.stateFor(proj.ID)

	feature, ok := o.claimNextFeature(ps, proj.ProjectDir, agentIndex)
	if !ok {
		o.maybeFinishProject(proj)
		return
	}

	ctx := context.Background()
	branch := ""
	if proj.Concurrency > 1 {
		branch = fmt.Sprintf("agent-%d-%s", agentIndex, feature.ID)
		if err := o.git.CreateBranch(ctx, proj.ID, proj.ProjectDir, branch); err != nil {
			o.logger.WithError(err).Warn("failed to create feature branch, releasing claim")
			ps.releaseFeature(feature.ID, agentIndex)
			return
		}
	}

	sessionCtx := provider.SessionContext{
		Prompt:       buildCodingPrompt(proj) + "\n\nAssigned feature: " + feature.ID + " - " + feature.Description,
		Model:        proj.Model,
		SystemPrompt: proj.SystemPrompt,
		Settings:     proj.Settings,
	}

	spec := sessionSpec{
		projectID:  proj.ID,
		projectDir: proj.ProjectDir,
		kind:       model.SessionKindCoding,
		agentIndex: agentIndex,
		featureID:  feature.ID,
		branch:     branch,
		adapter:    adapter,
		sessionCtx: sessionCtx,
		totalSlots: proj.Concurrency,
		onExit: func(code int, stopped bool) {
			o.onCodingExit(proj, adapter, agentIndex, feature, branch, code, stopped)
		},
	}
	go o.runSession(spec)
}

// onCodingExit merges a successful branch into main, then either chains
// the next feature for this slot or settles the project's terminal
// state.
func (o *Orchestrator) onCodingExit(proj *model.Project, adapter provider.Adapter, agentIndex int, feature model.Feature, branch string, code int, stopped bool) {
	ctx := context.Background()
	success := adapter.IsSuccessExit(code)

	if !stopped && success && branch != "" {
		if err := o.git.MergeToMain(ctx, proj.ID, proj.ProjectDir, branch); err != nil {
			o.logger.WithError(err).Warn("failed to merge feature branch")
		} else if err := o.git.DeleteBranch(ctx, proj.ID, proj.ProjectDir, branch); err != nil {
			o.logger.WithError(err).Warn("failed to delete merged feature branch")
		}
	}

	if stopped {
		return
	}

	features, err := store.ReadFeatureList(proj.ProjectDir)
	if err == nil && len(features) > 0 && model.AllDone(features) {
		_, _ = o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: true})
		return
	}

	if !success {
		// A failed (non-stopped) coding session pauses the project rather
		// than erroring it outright: the feature branch is preserved and
		// an operator can inspect logs and restart.
		o.pauseIfIdle(proj.ID)
		return
	}

	o.chainNextCoding(proj, adapter, agentIndex)
}

// chainNextCoding waits the configured chain delay, detached from any
// request context, before claiming the next feature for agentIndex. A
// concurrent StopAgent cancels the wait by closing the slot's pending
// channel.
func (o *Orchestrator) chainNextCoding(proj *model.Project, adapter provider.Adapter, agentIndex int) {
	ps := o.stateFor(proj.ID)
	stopCh := make(chan struct{})

	ps.mu.Lock()
	ps.pendingChain[agentIndex] = stopCh
	ps.mu.Unlock()

	ctx, cancel := appctx.Detached(context.Background(), stopCh, o.cfg.ChainDelay())
	go func() {
		<-ctx.Done()
		cancel()

		ps.mu.Lock()
		_, stillPending := ps.pendingChain[agentIndex]
		delete(ps.pendingChain, agentIndex)
		ps.mu.Unlock()
		if !stillPending {
			return
		}

		current, err := o.store.LoadProject(proj.ID)
		if err != nil || current.Status != model.StatusRunning {
			return
		}
		o.spawnNextCoding(current, adapter, agentIndex)
	}()
}

// maybeFinishProject marks a project completed once every feature has
// passed and no agent slot is still active.
func (o *Orchestrator) maybeFinishProject(proj *model.Project) {
	if o.activeCount(proj.ID) > 0 {
		return
	}
	features, err := store.ReadFeatureList(proj.ProjectDir)
	if err != nil || len(features) == 0 {
		return
	}
	if model.AllDone(features) {
		_, _ = o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: true})
	}
}

// pauseIfIdle transitions a project to paused once no agent is left
// running, used after a non-stopped session fails.
func (o *Orchestrator) pauseIfIdle(projectID string) {
	if o.activeCount(projectID) > 0 {
		return
	}
	_, _ = o.transitionProject(projectID, statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true})
}

// startAgentTeams runs a single coordinating session (agent index 0)
// that owns the whole feature list itself rather than claiming features
// one at a time.
func (o *Orchestrator) startAgentTeams(proj *model.Project, adapter provider.Adapter) error {
	sessionCtx := provider.SessionContext{
		Prompt:       buildAgentTeamsPrompt(proj),
		Model:        proj.Model,
		SystemPrompt: proj.SystemPrompt,
		Settings:     proj.Settings,
	}
	spec := sessionSpec{
		projectID:  proj.ID,
		projectDir: proj.ProjectDir,
		kind:       model.SessionKindAgentTeams,
		agentIndex: 0,
		adapter:    adapter,
		sessionCtx: sessionCtx,
		totalSlots: 1,
		onExit: func(code int, stopped bool) {
			if stopped {
				return
			}
			success := adapter.IsSuccessExit(code)
			features, err := store.ReadFeatureList(proj.ProjectDir)
			if err == nil && len(features) > 0 && model.AllDone(features) {
				_, _ = o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: true})
				return
			}
			if !success {
				_, _ = o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true})
				return
			}
			// Agent-teams sessions that exit cleanly without finishing
			// every feature are restarted after the same chain delay as
			// single-feature coding sessions.
			o.chainAgentTeams(proj, adapter)
		},
	}
	go o.runSession(spec)
	return nil
}

func (o *Orchestrator) chainAgentTeams(proj *model.Project, adapter provider.Adapter) {
	ps := o.stateFor(proj.ID)
	stopCh := make(chan struct{})
	ps.mu.Lock()
	ps.pendingChain[0] = stopCh
	ps.mu.Unlock()

	ctx, cancel := appctx.Detached(context.Background(), stopCh, o.cfg.ChainDelay())
	go func() {
		<-ctx.Done()
		cancel()
		ps.mu.Lock()
		_, stillPending := ps.pendingChain[0]
		delete(ps.pendingChain, 0)
		ps.mu.Unlock()
		if !stillPending {
			return
		}
		current, err := o.store.LoadProject(proj.ID)
		if err != nil || current.Status != model.StatusRunning {
			return
		}
		_ = o.startAgentTeams(current, adapter)
	}()
}
