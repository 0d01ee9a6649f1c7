package model

import "time"

// Feature is one independently testable unit of work tracked in
// feature_list.json under the project working directory.
type Feature struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Steps         []string  `json:"steps"`
	Passes        bool      `json:"passes"`
	InProgress    bool      `json:"inProgress"`
	FailCount     int       `json:"failCount,omitempty"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
}

// FeatureListFile is the on-disk shape of feature_list.json, which may
// either be a bare array or an object wrapping the array.
type FeatureListFile struct {
	Features []Feature `json:"features"`
}

// Progress summarizes a feature list for broadcast.
type Progress struct {
	Total      int     `json:"total"`
	Passed     int     `json:"passed"`
	Percentage float64 `json:"percentage"`
}

// ComputeProgress derives a Progress summary from a feature list.
func ComputeProgress(features []Feature) Progress {
	total := len(features)
	passed := 0
	for _, f := range features {
		if f.Passes {
			passed++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(passed) / float64(total) * 100
	}
	return Progress{Total: total, Passed: passed, Percentage: pct}
}

// AllDone reports whether every feature in the list passes.
func AllDone(features []Feature) bool {
	if len(features) == 0 {
		return false
	}
	for _, f := range features {
		if !f.Passes {
			return false
		}
	}
	return true
}
