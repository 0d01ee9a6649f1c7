package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/statemachine"
)

func TestTransition_TableDriven(t *testing.T) {
	cases := []struct {
		name   string
		status model.ProjectStatus
		event  statemachine.Event
		want   statemachine.Result
	}{
		{
			name:   "start from idle without prior init goes to initializing",
			status: model.StatusIdle,
			event:  statemachine.Event{Kind: statemachine.EventStart},
			want:   statemachine.Result{NewStatus: model.StatusInitializing, Changed: true},
		},
		{
			name:   "start with prior init goes straight to running",
			status: model.StatusPaused,
			event:  statemachine.Event{Kind: statemachine.EventStart, HasInitialized: true},
			want:   statemachine.Result{NewStatus: model.StatusRunning, Changed: true},
		},
		{
			name:   "start from running is a no-op",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventStart},
			want:   statemachine.Result{NewStatus: model.StatusRunning},
		},
		{
			name:   "init complete with features and review mode goes to reviewing",
			status: model.StatusInitializing,
			event:  statemachine.Event{Kind: statemachine.EventInitComplete, HasFeatures: true, ReviewMode: true},
			want:   statemachine.Result{NewStatus: model.StatusReviewing, Changed: true},
		},
		{
			name:   "init complete with features and no review goes to running",
			status: model.StatusInitializing,
			event:  statemachine.Event{Kind: statemachine.EventInitComplete, HasFeatures: true},
			want:   statemachine.Result{NewStatus: model.StatusRunning, Changed: true},
		},
		{
			name:   "init complete with zero features is a no-op here (orchestrator drives ERROR separately)",
			status: model.StatusInitializing,
			event:  statemachine.Event{Kind: statemachine.EventInitComplete, HasFeatures: false},
			want:   statemachine.Result{NewStatus: model.StatusInitializing},
		},
		{
			name:   "init failed goes to error and stops the watcher",
			status: model.StatusInitializing,
			event:  statemachine.Event{Kind: statemachine.EventInitFailed},
			want:   statemachine.Result{NewStatus: model.StatusError, Changed: true, StopWatcher: true},
		},
		{
			name:   "init failed outside initializing is a no-op",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventInitFailed},
			want:   statemachine.Result{NewStatus: model.StatusRunning},
		},
		{
			name:   "review confirmed goes to running",
			status: model.StatusReviewing,
			event:  statemachine.Event{Kind: statemachine.EventReviewConfirmed},
			want:   statemachine.Result{NewStatus: model.StatusRunning, Changed: true},
		},
		{
			name:   "session complete with all done completes and stops watcher",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: true},
			want:   statemachine.Result{NewStatus: model.StatusCompleted, Changed: true, StopWatcher: true},
		},
		{
			name:   "session complete without all done is a no-op",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventSessionComplete, AllDone: false},
			want:   statemachine.Result{NewStatus: model.StatusRunning},
		},
		{
			name:   "session failed never advances status by itself",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventSessionFailed},
			want:   statemachine.Result{NewStatus: model.StatusRunning},
		},
		{
			name:   "stop with all agents stopped pauses and stops watcher",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true},
			want:   statemachine.Result{NewStatus: model.StatusPaused, Changed: true, StopWatcher: true},
		},
		{
			name:   "stop without all agents stopped is a no-op",
			status: model.StatusRunning,
			event:  statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: false},
			want:   statemachine.Result{NewStatus: model.StatusRunning},
		},
		{
			name:   "error from any status goes to error and stops watcher",
			status: model.StatusReviewing,
			event:  statemachine.Event{Kind: statemachine.EventError},
			want:   statemachine.Result{NewStatus: model.StatusError, Changed: true, StopWatcher: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := statemachine.Transition(tc.status, tc.event)
			assert.Equal(t, tc.want, got)

			// Invariant 1: idempotent replay yields an identical tuple.
			again := statemachine.Transition(tc.status, tc.event)
			assert.Equal(t, got, again)
		})
	}
}

func TestTransition_StartStopReturnsToPausedRegardlessOfIntermediateState(t *testing.T) {
	for _, start := range []model.ProjectStatus{
		model.StatusIdle, model.StatusPaused, model.StatusCompleted, model.StatusError,
	} {
		r := statemachine.Transition(start, statemachine.Event{Kind: statemachine.EventStart})
		stopped := statemachine.Transition(r.NewStatus, statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true})
		assert.Equal(t, model.StatusPaused, stopped.NewStatus, "start=%s", start)
	}
}
