package orchestrator

import (
	"context"
	"time"

	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/procattr"
	"github.com/kilnworks/autodev/internal/statemachine"
)

// InitRecovery runs once at startup: any project left in an active
// status from a previous process (running, initializing, reviewing) may
// still have a live child process from before the crash or restart. Its
// pid is terminated, its session record marked stopped, and the project
// paused so an operator can resume it deliberately.
func (o *Orchestrator) InitRecovery(ctx context.Context) error {
	ids, err := o.store.ListProjectIDs()
	if err != nil {
		return err
	}

	for _, id := range ids {
		proj, err := o.store.LoadProject(id)
		if err != nil {
			o.logger.WithError(err).Warn("recovery: failed to load project")
			continue
		}
		if !isActiveStatus(proj.Status) {
			continue
		}
		o.recoverProject(proj)
	}
	return nil
}

func isActiveStatus(s model.ProjectStatus) bool {
	switch s {
	case model.StatusRunning, model.StatusInitializing, model.StatusReviewing:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) recoverProject(proj *model.Project) {
	o.stopPersistedRunningSessions(proj.ID)
	if _, err := o.transitionProject(proj.ID, statemachine.Event{Kind: statemachine.EventStop, AllAgentsStopped: true}); err != nil {
		o.logger.WithProjectID(proj.ID).WithError(err).Warn("recovery: failed to pause project")
	}
}

// stopPersistedRunningSessions walks projectID's persisted sessions for
// any still marked running, terminates a still-live pid with
// SIGTERM->SIGKILL(LoopKillGrace), and marks each one stopped. Used both
// by InitRecovery at startup and by StopAgent's fallback for a project
// whose in-memory agent map is empty (e.g. after a partial crash) but
// whose persisted state still says a session is running.
func (o *Orchestrator) stopPersistedRunningSessions(projectID string) {
	log := o.logger.WithProjectID(projectID)

	sessions, err := o.store.LoadSessions(projectID)
	if err != nil {
		log.WithError(err).Warn("failed to load sessions")
	}

	for _, sess := range sessions {
		if sess.Status != model.SessionRunning || sess.PID <= 0 {
			continue
		}
		if procattr.IsAlive(sess.PID) {
			if err := procattr.Terminate(sess.PID); err != nil {
				log.WithError(err).Warn("SIGTERM failed")
			}
			pid := sess.PID
			go func() {
				time.Sleep(o.cfg.LoopKillGrace())
				if procattr.IsAlive(pid) {
					_ = procattr.Kill(pid)
				}
			}()
		}

		sessionID := sess.ID
		now := time.Now()
		_, err := o.store.UpdateSession(projectID, sessionID, func(s *model.Session) {
			s.Status = model.SessionStopped
			s.EndedAt = &now
		})
		if err != nil {
			log.WithError(err).Warn("failed to mark session stopped")
		}
	}
}
