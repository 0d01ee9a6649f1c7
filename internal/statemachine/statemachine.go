// Package statemachine is the orchestrator's pure status state machine
// (spec §4.4): a single total function mapping (status, event) to a
// possibly-new status plus a stop-watcher hint. It performs no I/O and
// holds no state of its own, so it is trivially safe to call from any
// goroutine and trivial to table-test.
package statemachine

import "github.com/kilnworks/autodev/internal/model"

// EventKind identifies one of the state machine's input events.
type EventKind string

const (
	EventStart           EventKind = "START"
	EventInitComplete    EventKind = "INIT_COMPLETE"
	EventInitFailed      EventKind = "INIT_FAILED"
	EventReviewConfirmed EventKind = "REVIEW_CONFIRMED"
	EventSessionComplete EventKind = "SESSION_COMPLETE"
	EventSessionFailed   EventKind = "SESSION_FAILED"
	EventStop            EventKind = "STOP"
	EventError           EventKind = "ERROR"
)

// Event is one state-machine input. Only the fields relevant to Kind are
// consulted; the rest are ignored.
type Event struct {
	Kind             EventKind
	HasInitialized   bool // START
	HasFeatures      bool // INIT_COMPLETE
	ReviewMode       bool // INIT_COMPLETE
	AllDone          bool // SESSION_COMPLETE
	AllAgentsStopped bool // STOP
}

// Result is the outcome of one Transition call.
type Result struct {
	NewStatus   model.ProjectStatus
	Changed     bool
	StopWatcher bool
}

// Transition is the state machine's single exported entry point. It is a
// pure, total function: the same (status, event) pair always yields the
// same Result, and every combination not covered by the table below
// yields a no-op Result{NewStatus: status, Changed: false}.
func Transition(status model.ProjectStatus, event Event) Result {
	noop := Result{NewStatus: status}

	switch event.Kind {
	case EventStart:
		switch status {
		case model.StatusIdle, model.StatusPaused, model.StatusCompleted, model.StatusError:
			next := model.StatusInitializing
			if event.HasInitialized {
				next = model.StatusRunning
			}
			return Result{NewStatus: next, Changed: next != status}
		}
		return noop

	case EventInitComplete:
		if status != model.StatusInitializing || !event.HasFeatures {
			return noop
		}
		next := model.StatusRunning
		if event.ReviewMode {
			next = model.StatusReviewing
		}
		return Result{NewStatus: next, Changed: next != status}

	case EventInitFailed:
		if status != model.StatusInitializing {
			return noop
		}
		return Result{NewStatus: model.StatusError, Changed: true, StopWatcher: true}

	case EventReviewConfirmed:
		if status != model.StatusReviewing {
			return noop
		}
		return Result{NewStatus: model.StatusRunning, Changed: true}

	case EventSessionComplete:
		if status != model.StatusRunning || !event.AllDone {
			return noop
		}
		return Result{NewStatus: model.StatusCompleted, Changed: true, StopWatcher: true}

	case EventSessionFailed:
		// Never advances status by itself (spec §4.4); the orchestrator
		// decides the outcome (it pauses the project via STOP).
		return noop

	case EventStop:
		if !event.AllAgentsStopped {
			return noop
		}
		return Result{NewStatus: model.StatusPaused, Changed: status != model.StatusPaused, StopWatcher: true}

	case EventError:
		return Result{NewStatus: model.StatusError, Changed: status != model.StatusError, StopWatcher: true}
	}

	return noop
}
