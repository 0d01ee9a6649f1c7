package store

import (
	"os"
	"path/filepath"

	"github.com/kilnworks/autodev/internal/model"
)

const projectFile = "project.json"

// LoadProject reads project.json. Returns os.ErrNotExist (wrapped) if the
// project has never been saved.
func (s *Store) LoadProject(projectID string) (*model.Project, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	var p model.Project
	if err := s.readJSON(projectID, projectFile, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProject performs a full-file rewrite of project.json.
func (s *Store) SaveProject(p *model.Project) error {
	lock := s.lockFor(p.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.writeJSON(p.ID, projectFile, p)
}

// ListProjectIDs enumerates every project directory under <dataDir>/projects.
func (s *Store) ListProjectIDs() ([]string, error) {
	root := filepath.Join(s.dataDir, "projects")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
