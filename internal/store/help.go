package store

import (
	"os"
	"time"

	"github.com/kilnworks/autodev/internal/model"
)

const helpRequestsFile = "help-requests.json"

// LoadHelpRequests reads help-requests.json; empty (not an error) if absent.
func (s *Store) LoadHelpRequests(projectID string) ([]model.HelpRequest, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	var reqs []model.HelpRequest
	if err := s.readJSON(projectID, helpRequestsFile, &reqs); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return reqs, nil
}

// AppendHelpRequest appends a new help request.
func (s *Store) AppendHelpRequest(req model.HelpRequest) error {
	lock := s.lockFor(req.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	var reqs []model.HelpRequest
	if err := s.readJSON(req.ProjectID, helpRequestsFile, &reqs); err != nil && !os.IsNotExist(err) {
		return err
	}
	reqs = append(reqs, req)
	return s.writeJSON(req.ProjectID, helpRequestsFile, reqs)
}

// ResolveHelpRequest marks a pending request resolved with the given
// response text. Returns a nil request and a nil error if no pending
// request with that ID exists.
func (s *Store) ResolveHelpRequest(projectID, requestID, response string) (*model.HelpRequest, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	var reqs []model.HelpRequest
	if err := s.readJSON(projectID, helpRequestsFile, &reqs); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	for i := range reqs {
		if reqs[i].ID == requestID && reqs[i].Status == model.HelpPending {
			now := time.Now()
			reqs[i].Status = model.HelpResolved
			reqs[i].Response = response
			reqs[i].ResolvedAt = &now
			if err := s.writeJSON(projectID, helpRequestsFile, reqs); err != nil {
				return nil, err
			}
			return &reqs[i], nil
		}
	}
	return nil, nil
}
