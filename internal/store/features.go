package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilnworks/autodev/internal/model"
)

const featuresCacheFile = "features.json"

// LoadFeaturesCache reads the internal fast-read cache; empty (not an
// error) if the project has no cache yet.
func (s *Store) LoadFeaturesCache(projectID string) ([]model.Feature, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	var features []model.Feature
	if err := s.readJSON(projectID, featuresCacheFile, &features); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return features, nil
}

// SaveFeaturesCache rewrites the internal fast-read cache.
func (s *Store) SaveFeaturesCache(projectID string, features []model.Feature) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	return s.writeJSON(projectID, featuresCacheFile, features)
}

// ReadFeatureList reads <projectDir>/feature_list.json, accepting either a
// bare array or {"features": [...]}. Missing file yields an empty slice.
func ReadFeatureList(projectDir string) ([]model.Feature, error) {
	path := filepath.Join(projectDir, "feature_list.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var arr []model.Feature
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	var wrapped model.FeatureListFile
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("store: feature_list.json is neither an array nor {features}: %w", err)
	}
	return wrapped.Features, nil
}

// WriteFeatureList rewrites <projectDir>/feature_list.json as a bare array,
// the orchestrator's own canonical shape; the watcher accepts either shape
// on read but this package only ever writes the array form.
func WriteFeatureList(projectDir string, features []model.Feature) error {
	data, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return err
	}

	final := filepath.Join(projectDir, "feature_list.json")
	tmp, err := os.CreateTemp(projectDir, ".feature_list.json.tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, final)
}
