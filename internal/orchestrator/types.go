// Package orchestrator is the core of the system (spec §4.1): a
// per-project supervisor of child CLI processes that decomposes a spec
// into features, fans coding agents out across them, serializes their
// branch/merge lifecycle through the git gateway, and streams their
// parsed output to the broadcast hub. Grounded on the teacher's
// internal/agentctl/process/manager.go and
// internal/agentctl/client/launcher/launcher.go (spawn, pipe-read,
// SIGTERM/SIGKILL escalation of child processes started with
// os/exec.Command), adapted from that package's gRPC-agent-manager shape
// to spec.md's direct child-process-per-session model.
package orchestrator

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/config"
	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/gitgw"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/store"
	"github.com/kilnworks/autodev/internal/watcher"
)

// Process is one spawned child, abstracted so tests can substitute a
// fake without spawning real OS processes.
type Process interface {
	Pid() int
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser
	// Wait blocks until the child exits, returning its exit code (or -1
	// if it could not be determined, e.g. killed by a signal) and any
	// error other than a non-zero exit.
	Wait() (exitCode int, err error)
}

// Launcher spawns a child process. The real implementation is OSLauncher;
// tests substitute a fake that never touches the OS.
type Launcher interface {
	Launch(dir, binary string, args []string, env []string) (Process, error)
}

// agentInstance is one running child-process slot within a project.
type agentInstance struct {
	sessionID  string
	agentIndex int
	featureID  string
	branch     string
	pid        int
	stopped    bool
	cancel     context.CancelFunc
}

// projectState is the mutable, mutex-guarded state the orchestrator
// keeps per project: running agent instances, the claim table, and the
// recent-assistant-text window the loop detector consults. Spec §4.2
// notes a single mutex around the per-project map suffices for a
// process-local orchestrator; this struct is that mutex plus the maps it
// guards, one instance per project rather than one global map, isolating
// projects from each other per the concurrency model (§5).
type projectState struct {
	mu     sync.Mutex
	agents map[int]*agentInstance
	claims map[string]int // featureID -> agentIndex

	// recentText holds, per agent index, the last few non-JSON assistant
	// text messages observed, for loop detection (spec §4.1).
	recentText map[int][]string

	// pendingChain holds a cancel channel for each agent index currently
	// waiting out its chain delay between sessions, so StopAgent can cut
	// a scheduled restart short.
	pendingChain map[int]chan struct{}
}

func newProjectState() *projectState {
	return &projectState{
		agents:       make(map[int]*agentInstance),
		claims:       make(map[string]int),
		recentText:   make(map[int][]string),
		pendingChain: make(map[int]chan struct{}),
	}
}

// Orchestrator owns every project's agents map, claim table, and watcher
// handle, reachable only through its exported methods (spec §4.1's
// public contract).
type Orchestrator struct {
	store    *store.Store
	registry *provider.Registry
	hub      *broadcast.Hub
	git      *gitgw.Gateway
	watcher  *watcher.Watcher
	launcher Launcher
	cfg      config.OrchestratorConfig
	logger   *logger.Logger

	mu       sync.Mutex
	projects map[string]*projectState
}

// New constructs an Orchestrator wired to its collaborators. launcher is
// normally OSLauncher{}; tests pass a fake.
func New(
	st *store.Store,
	registry *provider.Registry,
	hub *broadcast.Hub,
	git *gitgw.Gateway,
	wt *watcher.Watcher,
	launcher Launcher,
	cfg config.OrchestratorConfig,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: registry,
		hub:      hub,
		git:      git,
		watcher:  wt,
		launcher: launcher,
		cfg:      cfg,
		logger:   log.WithFields(zap.String("component", "orchestrator")),
		projects: make(map[string]*projectState),
	}
}

func (o *Orchestrator) stateFor(projectID string) *projectState {
	o.mu.Lock()
	defer o.mu.Unlock()
	ps, ok := o.projects[projectID]
	if !ok {
		ps = newProjectState()
		o.projects[projectID] = ps
	}
	return ps
}

// IsRunning reports whether projectID has at least one active agent
// instance.
func (o *Orchestrator) IsRunning(projectID string) bool {
	return o.GetActiveAgentCount(projectID) > 0
}

// GetActiveAgentCount returns how many agent instances are currently
// running for projectID.
func (o *Orchestrator) GetActiveAgentCount(projectID string) int {
	ps := o.stateFor(projectID)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.agents)
}

func (o *Orchestrator) activeCount(projectID string) int {
	return o.GetActiveAgentCount(projectID)
}

// SnapshotClaims writes every currently-tracked project's claim table to
// claimed.json as a best-effort debugging artifact (spec §6's optional
// claim snapshot). It is called once at shutdown; failures are logged and
// otherwise ignored since the snapshot is never read back as
// authoritative.
func (o *Orchestrator) SnapshotClaims() {
	o.mu.Lock()
	projectIDs := make([]string, 0, len(o.projects))
	states := make([]*projectState, 0, len(o.projects))
	for id, ps := range o.projects {
		projectIDs = append(projectIDs, id)
		states = append(states, ps)
	}
	o.mu.Unlock()

	for i, id := range projectIDs {
		if err := o.store.SaveClaimSnapshot(id, states[i].claimSnapshot()); err != nil {
			o.logger.WithProjectID(id).WithError(err).Warn("failed to snapshot claim table")
		}
	}
}
