package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/model"
	"github.com/kilnworks/autodev/internal/procattr"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/tracing"
)

// sessionSpec is everything runSession needs to spawn and supervise one
// child-process session; the public entry points (StartAgent,
// StartAppendInitializer, StartReviewSession) each build one of these and
// hand it off.
type sessionSpec struct {
	projectID  string
	projectDir string
	kind       model.SessionKind
	agentIndex int
	featureID  string
	branch     string
	adapter    provider.Adapter
	sessionCtx provider.SessionContext
	totalSlots int
	onExit     func(code int, stopped bool)
}

// runSession spawns the child described by spec, streams its output into
// the raw log and broadcast hub, and blocks until it exits. It is always
// called from its own goroutine.
func (o *Orchestrator) runSession(spec sessionSpec) {
	log := o.logger.WithProjectID(spec.projectID).WithAgentIndex(spec.agentIndex)
	ps := o.stateFor(spec.projectID)

	sessionID := uuid.New().String()
	_, span := tracing.TraceSessionSpawn(context.Background(), spec.projectID, sessionID, spec.adapter.Name(), spec.agentIndex)
	defer span.End()
	args := spec.adapter.BuildArgs(spec.sessionCtx)
	env := mergeEnv(os.Environ(), spec.adapter.BuildEnv(spec.sessionCtx))

	rawLog, err := o.store.OpenRawLog(sessionID, spec.adapter.Name())
	if err != nil {
		log.WithError(err).Error("failed to open raw log")
		if spec.onExit != nil {
			spec.onExit(-1, false)
		}
		return
	}
	defer rawLog.Close("internal-error")

	proc, err := o.launcher.Launch(spec.projectDir, spec.adapter.Binary(), args, env)
	if err != nil {
		log.WithError(err).Error("failed to spawn session")
		_ = rawLog.Close("spawn_failed")
		if spec.onExit != nil {
			spec.onExit(-1, false)
		}
		return
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	inst := &agentInstance{
		sessionID:  sessionID,
		agentIndex: spec.agentIndex,
		featureID:  spec.featureID,
		branch:     spec.branch,
		pid:        proc.Pid(),
		cancel:     cancel,
	}
	ps.mu.Lock()
	ps.agents[spec.agentIndex] = inst
	ps.mu.Unlock()

	sess := model.Session{
		ID:         sessionID,
		ProjectID:  spec.projectID,
		Kind:       spec.kind,
		Status:     model.SessionRunning,
		AgentIndex: &spec.agentIndex,
		FeatureID:  spec.featureID,
		Branch:     spec.branch,
		PID:        proc.Pid(),
		RawLogPath: o.store.RawLogPath(sessionID),
		StartedAt:  time.Now(),
	}
	if err := o.store.AppendSession(sess); err != nil {
		log.WithError(err).Warn("failed to persist session record")
	}
	o.hub.Publish(broadcast.AgentCountMessage(spec.projectID, o.activeCount(spec.projectID), spec.totalSlots))

	firstOutput := make(chan struct{}, 1)
	go o.watchFirstOutput(sessCtx, log, firstOutput, spec.projectID, sessionID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.pumpStdout(sessCtx, log, spec, inst, rawLog, proc, firstOutput)
	}()
	go o.pumpStderr(log, spec.projectID, rawLog, proc)

	exitCode, waitErr := proc.Wait()
	<-done
	cancel()

	stopped := inst.stopped
	success := spec.adapter.IsSuccessExit(exitCode)
	status := model.SessionCompleted
	switch {
	case stopped:
		status = model.SessionStopped
	case !success:
		status = model.SessionFailed
	}
	if waitErr != nil {
		log.WithError(waitErr).Warn("session wait returned an error")
	}
	tracing.TraceSessionEnd(span, string(status), waitErr)

	footer := string(status)
	_ = rawLog.Close(footer)

	now := time.Now()
	_, _ = o.store.UpdateSession(spec.projectID, sessionID, func(s *model.Session) {
		s.Status = status
		s.EndedAt = &now
	})
	sess.Status = status
	sess.EndedAt = &now
	o.hub.Publish(broadcast.SessionUpdateMessage(spec.projectID, sess))

	ps.releaseAllFor(spec.agentIndex)
	ps.clearHistory(spec.agentIndex)
	ps.mu.Lock()
	delete(ps.agents, spec.agentIndex)
	ps.mu.Unlock()
	o.hub.Publish(broadcast.AgentCountMessage(spec.projectID, o.activeCount(spec.projectID), spec.totalSlots))

	if spec.onExit != nil {
		spec.onExit(exitCode, stopped)
	}
}

// watchFirstOutput logs a warning if no output line arrives within the
// configured heartbeat window, surfacing stuck launches without killing
// them.
func (o *Orchestrator) watchFirstOutput(ctx context.Context, log *logger.Logger, firstOutput <-chan struct{}, projectID, sessionID string) {
	timer := time.NewTimer(o.cfg.FirstOutputHeartbeat())
	defer timer.Stop()
	select {
	case <-firstOutput:
	case <-ctx.Done():
	case <-timer.C:
		log.Warn("no output yet from session", zap.String("sessionId", sessionID))
	}
}

// pumpStdout reads the child's stdout line by line, parses each line
// through the adapter, persists and broadcasts the normalized event, and
// feeds the loop detector. Thinking events are broadcast but never
// persisted (spec §4.3).
func (o *Orchestrator) pumpStdout(ctx context.Context, log *logger.Logger, spec sessionSpec, inst *agentInstance, rawLog interface{ WriteLine(string) error }, proc Process, firstOutput chan<- struct{}) {
	ps := o.stateFor(spec.projectID)
	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if err := rawLog.WriteLine(line); err != nil {
			log.WithError(err).Warn("failed writing raw log line")
		}
		if first {
			first = false
			select {
			case firstOutput <- struct{}{}:
			default:
			}
		}
		if spec.adapter.IsNoiseLine(line) {
			continue
		}

		ev := spec.adapter.ParseLine(line)
		o.handleEvent(spec, inst, ps, ev)
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("stdout scan ended with error")
	}
}

// handleEvent turns one normalized AgentEvent into persisted log lines,
// broadcast messages, human-help scans, and loop-detector bookkeeping.
func (o *Orchestrator) handleEvent(spec sessionSpec, inst *agentInstance, ps *projectState, ev provider.AgentEvent) {
	if ev.Kind == provider.EventIgnore {
		return
	}

	entry := model.LogEntry{
		ID:         uuid.New().String(),
		SessionID:  inst.sessionID,
		Timestamp:  time.Now(),
		Kind:       toLogKind(ev.Kind),
		Content:    ev.Content,
		ToolName:   ev.ToolName,
		ToolInput:  ev.ToolInput,
		AgentIndex: &spec.agentIndex,
		Temporary:  ev.Kind == provider.EventThinking,
	}

	if ev.Kind != provider.EventThinking {
		if err := o.store.AppendLog(spec.projectID, entry); err != nil {
			o.logger.WithError(err).Warn("failed to persist log entry")
		}
	}
	o.hub.Publish(broadcast.LogMessage(spec.projectID, entry))

	if ev.Kind == provider.EventText {
		if ok, msg := scanForHumanHelp(ev.Content); ok {
			if err := o.raiseHelpRequest(spec.projectID, inst.sessionID, spec.agentIndex, spec.featureID, msg); err != nil {
				o.logger.WithError(err).Warn("failed to raise help request")
			}
			return
		}
		if !looksLikeJSONText(ev.Content) {
			ps.recordAssistantText(spec.agentIndex, ev.Content, o.cfg.LoopWindowSize)
			if ps.isLooping(spec.agentIndex, o.cfg.LoopWindowSize, o.cfg.LoopSimilarityThreshold) {
				o.killLoopingAgent(spec.projectID, inst, spec.featureID, ps.lastText(spec.agentIndex))
			}
		}
	}
}

// looksLikeJSONText delegates to the provider package's JSON sniff so the
// loop detector ignores structured tool-call echoes the way the spec's
// text-similarity window intends.
func looksLikeJSONText(s string) bool {
	return provider.LooksLikeJSON(s)
}

func toLogKind(k provider.EventKind) model.LogKind {
	switch k {
	case provider.EventToolUse:
		return model.LogToolUse
	case provider.EventToolResult:
		return model.LogToolResult
	case provider.EventThinking:
		return model.LogThinking
	case provider.EventSystem:
		return model.LogSystem
	case provider.EventError:
		return model.LogError
	default:
		return model.LogAssistant
	}
}

// killLoopingAgent raises a help request for a stuck agent and escalates
// SIGTERM then SIGKILL after the configured grace period.
func (o *Orchestrator) killLoopingAgent(projectID string, inst *agentInstance, featureID, lastMessage string) {
	log := o.logger.WithProjectID(projectID).WithAgentIndex(inst.agentIndex)
	log.Warn("loop detected, requesting help and terminating agent")

	message := "repeated output detected; agent terminated"
	if lastMessage != "" {
		message = fmt.Sprintf("repeated output detected; agent terminated. Last message: %q", lastMessage)
	}
	if err := o.raiseHelpRequest(projectID, inst.sessionID, inst.agentIndex, featureID, message); err != nil {
		log.WithError(err).Warn("failed to raise loop help request")
	}

	inst.stopped = true
	if err := procattr.Terminate(inst.pid); err != nil {
		log.WithError(err).Warn("SIGTERM failed")
	}
	go func(pid int) {
		time.Sleep(o.cfg.LoopKillGrace())
		if procattr.IsAlive(pid) {
			_ = procattr.Kill(pid)
		}
	}(inst.pid)
}

// pumpStderr reads the child's stderr line by line, writing each one
// prefixed into the raw log and broadcasting each non-empty line as an
// error-kind log entry.
func (o *Orchestrator) pumpStderr(log *logger.Logger, projectID string, rawLog interface {
	WriteStderrLine(string) error
}, proc Process) {
	scanner := bufio.NewScanner(proc.Stderr())
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if err := rawLog.WriteStderrLine(line); err != nil {
			log.WithError(err).Warn("failed writing stderr raw log line")
		}
		if line == "" {
			continue
		}
		o.hub.Publish(broadcast.LogMessage(projectID, model.LogEntry{
			ID:        uuid.New().String(),
			Timestamp: time.Now(),
			Kind:      model.LogError,
			Content:   line,
		}))
	}
}

// mergeEnv overlays extra on top of base, later entries winning, in
// KEY=VALUE form suitable for exec.Cmd.Env.
func mergeEnv(base []string, extra map[string]string) []string {
	out := append([]string(nil), base...)
	for k, v := range extra {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
