package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/config"
	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/gitgw"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/orchestrator"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/store"
	"github.com/kilnworks/autodev/internal/watcher"
)

// fakeProcess/fakeLauncher/fakeAdapter mirror the orchestrator package's
// own test doubles (unexported there, so the API package keeps its own
// minimal copies) — no real OS process or CLI binary is ever touched.
type fakeProcess struct {
	pid    int
	stdout io.ReadCloser
	stderr io.ReadCloser
	exitCh chan int
}

func newFakeProcess(pid int, exitCode int) *fakeProcess {
	ch := make(chan int, 1)
	ch <- exitCode
	return &fakeProcess{
		pid:    pid,
		stdout: io.NopCloser(strings.NewReader("")),
		stderr: io.NopCloser(strings.NewReader("")),
		exitCh: ch,
	}
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Stdout() io.ReadCloser { return p.stdout }
func (p *fakeProcess) Stderr() io.ReadCloser { return p.stderr }
func (p *fakeProcess) Wait() (int, error)    { return <-p.exitCh, nil }

type fakeLauncher struct{}

func (f *fakeLauncher) Launch(dir, binary string, args []string, env []string) (orchestrator.Process, error) {
	return newFakeProcess(1234, 0), nil
}

type fakeAdapter struct{}

func (fakeAdapter) Name() string                                           { return "fake" }
func (fakeAdapter) DisplayName() string                                    { return "Fake" }
func (fakeAdapter) Binary() string                                         { return "fake-cli" }
func (fakeAdapter) DefaultModel() string                                   { return "" }
func (fakeAdapter) Capabilities() provider.Capabilities                    { return provider.Capabilities{} }
func (fakeAdapter) Settings() []provider.SettingDescriptor                 { return nil }
func (fakeAdapter) BuildArgs(ctx provider.SessionContext) []string         { return []string{"run"} }
func (fakeAdapter) BuildEnv(ctx provider.SessionContext) map[string]string { return nil }
func (fakeAdapter) ParseLine(line string) provider.AgentEvent {
	return provider.AgentEvent{Kind: provider.EventText, Content: line}
}
func (fakeAdapter) IsSuccessExit(code int) bool  { return code == 0 }
func (fakeAdapter) IsNoiseLine(line string) bool { return line == "" }

// settingfulAdapter is fakeAdapter plus a non-empty Settings() descriptor
// list, for exercising createProject's settings validation.
type settingfulAdapter struct{ fakeAdapter }

func (settingfulAdapter) Name() string { return "settingful" }
func (settingfulAdapter) Settings() []provider.SettingDescriptor {
	return []provider.SettingDescriptor{
		{Key: "mode", Type: provider.SettingSelect, Options: []string{"fast", "careful"}},
	}
}

func newTestServer(t *testing.T, authToken string) (*gin.Engine, Deps, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Default()
	st, err := store.New(t.TempDir(), log)
	require.NoError(t, err)

	registry := provider.NewRegistry()
	registry.Register(fakeAdapter{})
	registry.Register(settingfulAdapter{})

	hub := broadcast.NewHub(log)
	git := gitgw.New(log)

	var orch *orchestrator.Orchestrator
	wt := watcher.New(st, orchestrator.WatcherCallbacks(&orch), log)
	orch = orchestrator.New(st, registry, hub, git, wt, &fakeLauncher{}, config.OrchestratorConfig{
		MaxConcurrency: 8,
	}, log)

	deps := Deps{
		Store:        st,
		Orchestrator: orch,
		Registry:     registry,
		Hub:          hub,
		Logger:       log,
		Auth:         config.AuthConfig{Token: authToken},
	}
	return NewRouter(deps), deps, t.TempDir()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateProject_PersistsAndWritesSpecFile(t *testing.T) {
	r, _, projectDir := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: projectDir,
		Provider:   "fake",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var proj model.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	require.NotEmpty(t, proj.ID)
	require.Equal(t, 1, proj.Concurrency, "concurrency defaults to the clamped minimum")

	specBytes, err := os.ReadFile(filepath.Join(projectDir, "app_spec.txt"))
	require.NoError(t, err)
	require.Equal(t, "build a widget API", string(specBytes))
}

func TestCreateProject_RejectsUnknownProvider(t *testing.T) {
	r, _, projectDir := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: projectDir,
		Provider:   "nonexistent",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProject_RejectsSettingOutsideDescriptorOptions(t *testing.T) {
	r, _, projectDir := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: projectDir,
		Provider:   "settingful",
		Settings:   map[string]any{"mode": "reckless"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProject_AcceptsSettingWithinDescriptorOptions(t *testing.T) {
	r, _, projectDir := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: projectDir,
		Provider:   "settingful",
		Settings:   map[string]any{"mode": "careful"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateProject_RejectsUnsafeProjectDir(t *testing.T) {
	r, _, _ := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: "/etc/widget-factory",
		Provider:   "fake",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetProject_FoldsInFeaturesSessionsProgress(t *testing.T) {
	r, deps, projectDir := newTestServer(t, "")

	createRec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: projectDir,
		Provider:   "fake",
	})
	var created model.Project
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	require.NoError(t, deps.Store.SaveFeaturesCache(created.ID, []model.Feature{
		{ID: "f1", Description: "do the thing", Passes: true},
	}))

	rec := doJSON(t, r, http.MethodGet, "/api/v1/projects/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view projectView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Features, 1)
	require.Equal(t, 1, view.Progress.Total)
	require.Equal(t, 1, view.Progress.Passed)
}

func TestGetProject_UnknownIDReturnsNotFound(t *testing.T) {
	r, _, _ := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodGet, "/api/v1/projects/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProject_RemovesItFromListing(t *testing.T) {
	r, _, projectDir := newTestServer(t, "")

	createRec := doJSON(t, r, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:       "Widget Factory",
		Spec:       "build a widget API",
		ProjectDir: projectDir,
		Provider:   "fake",
	})
	var created model.Project
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	delRec := doJSON(t, r, http.MethodDelete, "/api/v1/projects/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, delRec.Code)

	getRec := doJSON(t, r, http.MethodGet, "/api/v1/projects/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestListProviders_ReturnsRegisteredAdapter(t *testing.T) {
	r, _, _ := newTestServer(t, "")

	rec := doJSON(t, r, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var descriptors []provider.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptors))
	require.Len(t, descriptors, 2)
	require.Equal(t, "fake", descriptors[0].Name)
}
