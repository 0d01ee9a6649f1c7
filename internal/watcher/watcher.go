// Package watcher is the feature watcher (spec §4.6): a 3-second
// per-project reconciler that re-reads feature_list.json from disk,
// diffs it against a cached copy, and reports sync/progress/completion
// through a small callback set. The Start/Stop/IsRunning lifecycle,
// guarded by a mutex-protected running bool, is ported directly from the
// teacher's orchestrator/watcher.Watcher shape; its NATS event-bus
// subscriptions are replaced here with the disk poll spec.md describes,
// since this watcher reconciles a file, not an event stream.
package watcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/store"
)

// Interval is the poll period spec §4.6 fixes at 3 seconds.
const Interval = 3 * time.Second

// Callbacks are invoked as the watcher observes changes. All are
// optional; a nil callback is simply skipped.
type Callbacks struct {
	OnFeaturesSync func(projectID string, features []model.Feature)
	OnProgress     func(projectID string, progress model.Progress)
	OnCompleted    func(projectID string)
}

type projectWatcher struct {
	projectID  string
	projectDir string
	stop       chan struct{}
	done       chan struct{}
	cached     []model.Feature
}

// Watcher owns one ticking goroutine per project currently being
// watched.
type Watcher struct {
	store     *store.Store
	callbacks Callbacks
	logger    *logger.Logger
	interval  time.Duration

	mu       sync.Mutex
	watching map[string]*projectWatcher
}

// New creates an idle Watcher polling every Interval.
func New(st *store.Store, cb Callbacks, log *logger.Logger) *Watcher {
	return &Watcher{
		store:     st,
		callbacks: cb,
		logger:    log.WithFields(zap.String("component", "feature_watcher")),
		watching:  make(map[string]*projectWatcher),
		interval:  Interval,
	}
}

// Start begins polling projectDir's feature_list.json every Interval.
// A no-op if the project is already being watched.
func (w *Watcher) Start(projectID, projectDir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watching[projectID]; ok {
		return
	}

	pw := &projectWatcher{
		projectID:  projectID,
		projectDir: projectDir,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	w.watching[projectID] = pw

	cached, err := w.store.LoadFeaturesCache(projectID)
	if err == nil {
		pw.cached = cached
	}

	go w.run(pw)
}

// Stop halts the ticker for projectID. Safe to call when not watching.
func (w *Watcher) Stop(projectID string) {
	w.mu.Lock()
	pw, ok := w.watching[projectID]
	if ok {
		delete(w.watching, projectID)
	}
	w.mu.Unlock()

	if ok {
		close(pw.stop)
		<-pw.done
	}
}

// IsRunning reports whether projectID currently has an active ticker.
func (w *Watcher) IsRunning(projectID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watching[projectID]
	return ok
}

// StopAll halts every active ticker.
func (w *Watcher) StopAll() {
	w.mu.Lock()
	ids := make([]string, 0, len(w.watching))
	for id := range w.watching {
		ids = append(ids, id)
	}
	w.mu.Unlock()
	for _, id := range ids {
		w.Stop(id)
	}
}

func (w *Watcher) run(pw *projectWatcher) {
	defer close(pw.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pw.stop:
			return
		case <-ticker.C:
			w.tick(context.Background(), pw)
		}
	}
}

func (w *Watcher) tick(_ context.Context, pw *projectWatcher) {
	features, err := store.ReadFeatureList(pw.projectDir)
	if err != nil {
		w.logger.Warn("failed to read feature_list.json",
			zap.String("project_id", pw.projectID), zap.Error(err))
		return
	}

	if featuresChanged(pw.cached, features) {
		pw.cached = features
		_ = w.store.SaveFeaturesCache(pw.projectID, features)
		if w.callbacks.OnFeaturesSync != nil {
			w.callbacks.OnFeaturesSync(pw.projectID, features)
		}
	}

	progress := model.ComputeProgress(features)
	if w.callbacks.OnProgress != nil {
		w.callbacks.OnProgress(pw.projectID, progress)
	}

	if progress.Total > 0 && progress.Passed == progress.Total {
		if w.callbacks.OnCompleted != nil {
			w.callbacks.OnCompleted(pw.projectID)
		}
	}
}

// featuresChanged reports whether the feature count differs or any
// feature's (passes, inProgress) pair changed, per spec §4.6.
func featuresChanged(cached, current []model.Feature) bool {
	if len(cached) != len(current) {
		return true
	}
	byID := make(map[string]model.Feature, len(cached))
	for _, f := range cached {
		byID[f.ID] = f
	}
	for _, f := range current {
		prev, ok := byID[f.ID]
		if !ok {
			return true
		}
		if prev.Passes != f.Passes || prev.InProgress != f.InProgress {
			return true
		}
	}
	return false
}
