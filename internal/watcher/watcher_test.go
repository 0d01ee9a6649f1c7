package watcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/store"
)

const testInterval = 20 * time.Millisecond

func newTestWatcher(t *testing.T, cb Callbacks) (*Watcher, string) {
	t.Helper()
	st, err := store.New(t.TempDir(), logger.Default())
	require.NoError(t, err)

	w := New(st, cb, logger.Default())
	w.interval = testInterval

	projectDir := t.TempDir()
	return w, projectDir
}

func writeFeatureList(t *testing.T, dir string, features []model.Feature) {
	t.Helper()
	data, err := json.Marshal(features)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature_list.json"), data, 0o644))
}

func TestWatcher_StartStopIsRunning(t *testing.T) {
	w, dir := newTestWatcher(t, Callbacks{})

	require.False(t, w.IsRunning("p1"))
	w.Start("p1", dir)
	require.True(t, w.IsRunning("p1"))
	w.Stop("p1")
	require.False(t, w.IsRunning("p1"))
}

func TestWatcher_StartTwiceIsNoop(t *testing.T) {
	w, dir := newTestWatcher(t, Callbacks{})
	w.Start("p1", dir)
	defer w.Stop("p1")
	w.Start("p1", dir) // must not panic or deadlock
	require.True(t, w.IsRunning("p1"))
}

func TestWatcher_PublishesSyncOnFeatureChange(t *testing.T) {
	var mu sync.Mutex
	var syncCalls int
	var lastFeatures []model.Feature

	w, dir := newTestWatcher(t, Callbacks{
		OnFeaturesSync: func(projectID string, features []model.Feature) {
			mu.Lock()
			defer mu.Unlock()
			syncCalls++
			lastFeatures = features
		},
	})

	writeFeatureList(t, dir, []model.Feature{{ID: "f1", Passes: false}})
	w.Start("p1", dir)
	defer w.Stop("p1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return syncCalls >= 1
	}, time.Second, testInterval)

	mu.Lock()
	require.Len(t, lastFeatures, 1)
	require.Equal(t, "f1", lastFeatures[0].ID)
	mu.Unlock()
}

func TestWatcher_PublishesProgressEveryTick(t *testing.T) {
	var mu sync.Mutex
	var progressCalls int

	w, dir := newTestWatcher(t, Callbacks{
		OnProgress: func(projectID string, progress model.Progress) {
			mu.Lock()
			defer mu.Unlock()
			progressCalls++
		},
	})

	writeFeatureList(t, dir, []model.Feature{{ID: "f1", Passes: false}})
	w.Start("p1", dir)
	defer w.Stop("p1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return progressCalls >= 2
	}, time.Second, testInterval)
}

func TestWatcher_CompletesWhenAllFeaturesPass(t *testing.T) {
	completed := make(chan string, 1)

	w, dir := newTestWatcher(t, Callbacks{
		OnCompleted: func(projectID string) {
			completed <- projectID
		},
	})

	writeFeatureList(t, dir, []model.Feature{{ID: "f1", Passes: true}, {ID: "f2", Passes: true}})
	w.Start("p1", dir)
	defer w.Stop("p1")

	select {
	case id := <-completed:
		require.Equal(t, "p1", id)
	case <-time.After(time.Second):
		t.Fatal("expected OnCompleted to fire when all features pass")
	}
}

func TestWatcher_DoesNotCompleteWithNoFeatures(t *testing.T) {
	completed := make(chan string, 1)

	w, dir := newTestWatcher(t, Callbacks{
		OnCompleted: func(projectID string) {
			completed <- projectID
		},
	})

	w.Start("p1", dir)
	defer w.Stop("p1")

	select {
	case <-completed:
		t.Fatal("OnCompleted must not fire for an empty feature list")
	case <-time.After(150 * time.Millisecond):
	}
}
