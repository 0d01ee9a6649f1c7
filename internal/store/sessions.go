package store

import (
	"os"

	"github.com/kilnworks/autodev/internal/model"
)

const sessionsFile = "sessions.json"

// LoadSessions reads sessions.json; empty (not an error) if absent.
func (s *Store) LoadSessions(projectID string) ([]model.Session, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	var sessions []model.Session
	if err := s.readJSON(projectID, sessionsFile, &sessions); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return sessions, nil
}

// SaveSessions rewrites sessions.json in full.
func (s *Store) SaveSessions(projectID string, sessions []model.Session) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	return s.writeJSON(projectID, sessionsFile, sessions)
}

// AppendSession loads, appends, and rewrites sessions.json under the
// project lock, avoiding a read-modify-write race with concurrent callers.
func (s *Store) AppendSession(sess model.Session) error {
	lock := s.lockFor(sess.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	var sessions []model.Session
	if err := s.readJSON(sess.ProjectID, sessionsFile, &sessions); err != nil && !os.IsNotExist(err) {
		return err
	}
	sessions = append(sessions, sess)
	return s.writeJSON(sess.ProjectID, sessionsFile, sessions)
}

// UpdateSession rewrites the session with the given ID in place, calling
// mutate on a copy of the stored record. Returns false if no session with
// that ID exists.
func (s *Store) UpdateSession(projectID, sessionID string, mutate func(*model.Session)) (bool, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	var sessions []model.Session
	if err := s.readJSON(projectID, sessionsFile, &sessions); err != nil && !os.IsNotExist(err) {
		return false, err
	}

	found := false
	for i := range sessions {
		if sessions[i].ID == sessionID {
			mutate(&sessions[i])
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if err := s.writeJSON(projectID, sessionsFile, sessions); err != nil {
		return false, err
	}
	return true, nil
}
