package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/config"
	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/gitgw"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/store"
	"github.com/kilnworks/autodev/internal/watcher"
)

// fakeProcess is a Process whose exit is controlled by the test via
// exitCh, so StopAgent-style tests never depend on real OS processes.
type fakeProcess struct {
	pid    int
	stdout io.ReadCloser
	stderr io.ReadCloser
	exitCh chan int
}

func newFakeProcess(pid int, stdout string, exitCode int) *fakeProcess {
	ch := make(chan int, 1)
	ch <- exitCode
	return &fakeProcess{
		pid:    pid,
		stdout: io.NopCloser(strings.NewReader(stdout)),
		stderr: io.NopCloser(strings.NewReader("")),
		exitCh: ch,
	}
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Stdout() io.ReadCloser { return p.stdout }
func (p *fakeProcess) Stderr() io.ReadCloser { return p.stderr }
func (p *fakeProcess) Wait() (int, error)    { return <-p.exitCh, nil }

// fakeLauncher never touches the OS; each Launch call invokes a
// test-supplied hook that can fake side effects (like writing
// feature_list.json) and choose the resulting process.
type fakeLauncher struct {
	mu    sync.Mutex
	calls int
	hook  func(call int, dir, binary string, args []string, env []string) (Process, error)
}

func (f *fakeLauncher) Launch(dir, binary string, args []string, env []string) (Process, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.hook(call, dir, binary, args, env)
}

// fakeAdapter is a minimal provider.Adapter that never parses real CLI
// output; ParseLine treats every line as plain assistant text.
type fakeAdapter struct{}

func (fakeAdapter) Name() string               { return "fake" }
func (fakeAdapter) DisplayName() string        { return "Fake" }
func (fakeAdapter) Binary() string             { return "fake-cli" }
func (fakeAdapter) DefaultModel() string       { return "" }
func (fakeAdapter) Capabilities() provider.Capabilities { return provider.Capabilities{} }
func (fakeAdapter) Settings() []provider.SettingDescriptor { return nil }
func (fakeAdapter) BuildArgs(ctx provider.SessionContext) []string { return []string{"run"} }
func (fakeAdapter) BuildEnv(ctx provider.SessionContext) map[string]string { return nil }
func (fakeAdapter) ParseLine(line string) provider.AgentEvent {
	return provider.AgentEvent{Kind: provider.EventText, Content: line}
}
func (fakeAdapter) IsSuccessExit(code int) bool { return code == 0 }
func (fakeAdapter) IsNoiseLine(line string) bool { return line == "" }

func testConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		FirstOutputHeartbeatSeconds: 5,
		StopGraceSeconds:            0,
		LoopKillGraceSeconds:        0,
		ChainDelaySeconds:           0,
		WatcherIntervalSeconds:      3,
		LoopWindowSize:              5,
		LoopSimilarityThreshold:     0.5,
		MaxConcurrency:              8,
	}
}

func newTestOrchestrator(t *testing.T, launcher Launcher) (*Orchestrator, *store.Store, string) {
	t.Helper()
	log := logger.Default()

	st, err := store.New(t.TempDir(), log)
	require.NoError(t, err)

	registry := provider.NewRegistry()
	registry.Register(fakeAdapter{})

	hub := broadcast.NewHub(log)
	git := gitgw.New(log)

	var orch *Orchestrator
	wt := watcher.New(st, WatcherCallbacks(&orch), log)
	orch = New(st, registry, hub, git, wt, launcher, testConfig(), log)

	projectDir := t.TempDir()
	return orch, st, projectDir
}

func writeFeatureList(t *testing.T, dir string, features []model.Feature) {
	t.Helper()
	require.NoError(t, store.WriteFeatureList(dir, features))
}

func TestStartAgent_InitializerThenCompletesSingleFeature(t *testing.T) {
	launcher := &fakeLauncher{}
	orch, st, projectDir := newTestOrchestrator(t, launcher)

	launcher.hook = func(call int, dir, binary string, args, env []string) (Process, error) {
		switch call {
		case 1: // initializer
			writeFeatureList(t, projectDir, []model.Feature{{ID: "f1", Description: "do the thing"}})
			return newFakeProcess(1000, "", 0), nil
		case 2: // the single coding session for f1
			writeFeatureList(t, projectDir, []model.Feature{{ID: "f1", Description: "do the thing", Passes: true}})
			return newFakeProcess(1001, "", 0), nil
		default:
			t.Fatalf("unexpected launch call %d", call)
			return nil, nil
		}
	}

	proj := &model.Project{
		ID:          "p1",
		Name:        "Widget Factory",
		Spec:        "build widgets",
		Status:      model.StatusIdle,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	require.NoError(t, orch.StartAgent(context.Background(), "p1"))

	assert.Eventually(t, func() bool {
		p, err := st.LoadProject("p1")
		return err == nil && p.Status == model.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartAgent_FailedInitializerMarksError(t *testing.T) {
	launcher := &fakeLauncher{
		hook: func(call int, dir, binary string, args, env []string) (Process, error) {
			return newFakeProcess(2000, "", 1), nil
		},
	}
	orch, st, projectDir := newTestOrchestrator(t, launcher)

	proj := &model.Project{
		ID:          "p2",
		Name:        "Broken",
		Status:      model.StatusIdle,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	require.NoError(t, orch.StartAgent(context.Background(), "p2"))

	assert.Eventually(t, func() bool {
		p, err := st.LoadProject("p2")
		return err == nil && p.Status == model.StatusError
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartAgent_AlreadyRunningIsRejected(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	launcher := &fakeLauncher{
		hook: func(call int, dir, binary string, args, env []string) (Process, error) {
			proc := newFakeProcess(3000, "", 0)
			proc.exitCh = make(chan int)
			go func() {
				<-block
				proc.exitCh <- 0
			}()
			return proc, nil
		},
	}
	orch, st, projectDir := newTestOrchestrator(t, launcher)

	writeFeatureList(t, projectDir, []model.Feature{{ID: "f1", Description: "pending"}})
	proj := &model.Project{
		ID:          "p3",
		Status:      model.StatusIdle,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	require.NoError(t, orch.StartAgent(context.Background(), "p3"))
	assert.Eventually(t, func() bool { return orch.IsRunning("p3") }, time.Second, 5*time.Millisecond)

	err := orch.StartAgent(context.Background(), "p3")
	assert.Error(t, err)
}

func TestStopAgent_PausesProjectEvenIfProcessLingers(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	launcher := &fakeLauncher{
		hook: func(call int, dir, binary string, args, env []string) (Process, error) {
			proc := newFakeProcess(4000, "", 0)
			proc.exitCh = make(chan int)
			go func() {
				<-block
				proc.exitCh <- 0
			}()
			return proc, nil
		},
	}
	orch, st, projectDir := newTestOrchestrator(t, launcher)

	writeFeatureList(t, projectDir, []model.Feature{{ID: "f1", Description: "pending"}})
	proj := &model.Project{
		ID:          "p4",
		Status:      model.StatusIdle,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	require.NoError(t, orch.StartAgent(context.Background(), "p4"))
	assert.Eventually(t, func() bool { return orch.IsRunning("p4") }, time.Second, 5*time.Millisecond)

	require.NoError(t, orch.StopAgent("p4"))

	assert.Eventually(t, func() bool {
		p, err := st.LoadProject("p4")
		return err == nil && p.Status == model.StatusPaused
	}, time.Second, 10*time.Millisecond)
}

func TestInitRecovery_PausesStaleActiveProjects(t *testing.T) {
	launcher := &fakeLauncher{
		hook: func(call int, dir, binary string, args, env []string) (Process, error) {
			return newFakeProcess(5000, "", 0), nil
		},
	}
	orch, st, projectDir := newTestOrchestrator(t, launcher)

	proj := &model.Project{
		ID:          "p5",
		Status:      model.StatusRunning,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	agentIdx := 0
	require.NoError(t, st.AppendSession(model.Session{
		ID:         "sess-orphan",
		ProjectID:  "p5",
		Kind:       model.SessionKindCoding,
		Status:     model.SessionRunning,
		AgentIndex: &agentIdx,
		PID:        999999999, // not a real pid: exercises the "already gone" path without signaling anything live
		StartedAt:  time.Now(),
	}))

	require.NoError(t, orch.InitRecovery(context.Background()))

	p, err := st.LoadProject("p5")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, p.Status)

	sessions, err := st.LoadSessions("p5")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.SessionStopped, sessions[0].Status)
}

func TestStopAgent_TerminatesPersistedSessionWhenNoInMemoryAgents(t *testing.T) {
	orch, st, projectDir := newTestOrchestrator(t, &fakeLauncher{})

	proj := &model.Project{
		ID:          "p7",
		Status:      model.StatusRunning,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	agentIdx := 0
	require.NoError(t, st.AppendSession(model.Session{
		ID:         "sess-partial-crash",
		ProjectID:  "p7",
		Kind:       model.SessionKindCoding,
		Status:     model.SessionRunning,
		AgentIndex: &agentIdx,
		PID:        999999999, // not a real pid: nothing live to signal, only bookkeeping to fix up
		StartedAt:  time.Now(),
	}))

	// No StartAgent call: the orchestrator's in-memory agent map for p7 is
	// empty, as if the process restarted without InitRecovery having run.
	require.NoError(t, orch.StopAgent("p7"))

	p, err := st.LoadProject("p7")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, p.Status)

	sessions, err := st.LoadSessions("p7")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.SessionStopped, sessions[0].Status)
}

func TestStartAppendInitializer_AppendsFragmentToSpecFile(t *testing.T) {
	launcher := &fakeLauncher{
		hook: func(call int, dir, binary string, args, env []string) (Process, error) {
			return newFakeProcess(6000, "", 0), nil
		},
	}
	orch, st, projectDir := newTestOrchestrator(t, launcher)

	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "app_spec.txt"), []byte("build widgets"), 0o644))

	proj := &model.Project{
		ID:          "p6",
		Status:      model.StatusPaused,
		Provider:    "fake",
		Concurrency: 1,
		ProjectDir:  projectDir,
	}
	require.NoError(t, st.SaveProject(proj))

	require.NoError(t, orch.StartAppendInitializer(context.Background(), "p6", "add login"))

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(projectDir, "app_spec.txt"))
		return err == nil && strings.HasSuffix(string(data), "add login")
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(projectDir, "app_spec.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "build widgets")
	assert.Contains(t, string(data), "---")

	updated, err := st.LoadProject("p6")
	require.NoError(t, err)
	assert.Contains(t, updated.Spec, "add login")
}
