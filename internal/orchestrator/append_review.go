package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/statemachine"
	"github.com/kilnworks/autodev/internal/store"
)

// appendSpecSeparator marks where an appended fragment begins in
// app_spec.txt, so the file stays a readable history of every append
// rather than a silent concatenation.
const appendSpecSeparator = "\n\n---\n\n"

// appendToSpecFile appends fragment to <projectDir>/app_spec.txt behind a
// separator block (spec §4.1/§6), creating the file if it is somehow
// missing.
func appendToSpecFile(projectDir, fragment string) error {
	f, err := os.OpenFile(filepath.Join(projectDir, "app_spec.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(appendSpecSeparator + fragment)
	return err
}

// startInitializer runs the one-shot session (agent index 0, since it
// always precedes any coding slot) that decomposes a project's spec into
// feature_list.json.
func (o *Orchestrator) startInitializer(proj *model.Project, adapter provider.Adapter) error {
	sessionCtx := provider.SessionContext{
		Prompt:       buildInitializerPrompt(proj),
		Model:        proj.Model,
		SystemPrompt: proj.SystemPrompt,
		Settings:     proj.Settings,
	}
	spec := sessionSpec{
		projectID:  proj.ID,
		projectDir: proj.ProjectDir,
		kind:       model.SessionKindInitializer,
		agentIndex: 0,
		adapter:    adapter,
		sessionCtx: sessionCtx,
		totalSlots: 1,
		onExit: func(code int, stopped bool) {
			o.onInitializerExit(proj, adapter, code, stopped)
		},
	}
	go o.runSession(spec)
	return nil
}

// onInitializerExit reads the feature list the initializer produced,
// caches it, and either moves into review or straight into coding.
func (o *Orchestrator) onInitializerExit(proj *model.Project, adapter provider.Adapter, code int, stopped bool) {
	if stopped || !adapter.IsSuccessExit(code) {
		_, _ = o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventInitFailed})
		return
	}

	features, err := store.ReadFeatureList(proj.ProjectDir)
	if err != nil || len(features) == 0 {
		_, _ = o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventInitFailed})
		return
	}

	if err := o.store.SaveFeaturesCache(proj.ID, features); err != nil {
		o.logger.WithError(err).Warn("failed to cache initializer feature list")
	}
	o.hub.Publish(broadcast.FeaturesSyncMessage(proj.ID, features))

	updated, err := o.transitionProject(proj.ID, statemachine.Event{
		Kind:        statemachine.EventInitComplete,
		HasFeatures: true,
		ReviewMode:  proj.ReviewBeforeCoding,
	})
	if err != nil {
		o.logger.WithError(err).Error("failed to transition after initializer")
		return
	}
	if updated.Status == model.StatusReviewing {
		return
	}
	if err := o.resumeCoding(updated, adapter); err != nil {
		o.logger.WithError(err).Error("failed to start coding after initializer")
	}
}

// StartAppendInitializer launches a reserved-index session (agent index
// 99) that appends new scope to a project's spec without disturbing any
// in-flight coding slots, used on a paused or completed project to hand
// it new work.
func (o *Orchestrator) StartAppendInitializer(ctx context.Context, projectID, additionalSpec string) error {
	proj, err := o.store.LoadProject(projectID)
	if err != nil {
		return errs.NotFound("project", projectID)
	}
	adapter, err := o.adapterFor(proj)
	if err != nil {
		return err
	}

	ps := o.stateFor(projectID)
	ps.mu.Lock()
	_, busy := ps.agents[model.AgentIndexAppend]
	ps.mu.Unlock()
	if busy {
		return errs.AlreadyRunning(projectID)
	}

	if err := appendToSpecFile(proj.ProjectDir, additionalSpec); err != nil {
		return errs.Internal("writing app_spec.txt", err)
	}

	proj.Spec = proj.Spec + "\n\n" + additionalSpec
	if err := o.store.SaveProject(proj); err != nil {
		return err
	}

	sessionCtx := provider.SessionContext{
		Prompt:       buildInitializerPrompt(proj),
		Model:        proj.Model,
		SystemPrompt: proj.SystemPrompt,
		Settings:     proj.Settings,
	}
	spec := sessionSpec{
		projectID:  proj.ID,
		projectDir: proj.ProjectDir,
		kind:       model.SessionKindInitializer,
		agentIndex: model.AgentIndexAppend,
		adapter:    adapter,
		sessionCtx: sessionCtx,
		totalSlots: model.AgentIndexAppend + 1,
		onExit: func(code int, stopped bool) {
			if stopped || !adapter.IsSuccessExit(code) {
				return
			}
			features, err := store.ReadFeatureList(proj.ProjectDir)
			if err != nil {
				return
			}
			if err := o.store.SaveFeaturesCache(proj.ID, features); err != nil {
				o.logger.WithError(err).Warn("failed to cache appended feature list")
			}
			o.hub.Publish(broadcast.FeaturesSyncMessage(proj.ID, features))
		},
	}
	go o.runSession(spec)
	return nil
}

// StartReviewSession launches a reserved-index session (agent index 98)
// that revises the selected features per a human instruction, used from
// the reviewing status before a project's first coding round.
func (o *Orchestrator) StartReviewSession(ctx context.Context, projectID string, featureIDs []string, instruction string) error {
	proj, err := o.store.LoadProject(projectID)
	if err != nil {
		return errs.NotFound("project", projectID)
	}
	if proj.Status != model.StatusReviewing {
		return errs.InvalidInput("project is not in review")
	}
	adapter, err := o.adapterFor(proj)
	if err != nil {
		return err
	}

	all, err := store.ReadFeatureList(proj.ProjectDir)
	if err != nil {
		return errs.Internal("reading feature list", err)
	}
	selected := filterFeatures(all, featureIDs)
	if len(selected) == 0 {
		return errs.InvalidInput("no matching features selected for review")
	}

	sessionCtx := provider.SessionContext{
		Prompt:       buildReviewPrompt(proj, selected, instruction),
		Model:        proj.Model,
		SystemPrompt: proj.SystemPrompt,
		Settings:     proj.Settings,
	}
	spec := sessionSpec{
		projectID:  proj.ID,
		projectDir: proj.ProjectDir,
		kind:       model.SessionKindInitializer,
		agentIndex: model.AgentIndexReview,
		adapter:    adapter,
		sessionCtx: sessionCtx,
		totalSlots: model.AgentIndexReview + 1,
		onExit: func(code int, stopped bool) {
			if stopped || !adapter.IsSuccessExit(code) {
				return
			}
			features, err := store.ReadFeatureList(proj.ProjectDir)
			if err != nil {
				return
			}
			if err := o.store.SaveFeaturesCache(proj.ID, features); err != nil {
				o.logger.WithError(err).Warn("failed to cache reviewed feature list")
			}
			o.hub.Publish(broadcast.FeaturesSyncMessage(proj.ID, features))
		},
	}
	go o.runSession(spec)
	return nil
}

func filterFeatures(all []model.Feature, ids []string) []model.Feature {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []model.Feature
	for _, f := range all {
		if _, ok := want[f.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}
