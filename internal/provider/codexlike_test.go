package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/provider"
)

func TestCodexLike_BuildArgs(t *testing.T) {
	a := provider.NewCodexLike("codex", "Codex CLI", "codex", "gpt-5-codex")
	args := a.BuildArgs(provider.SessionContext{
		Prompt:   "implement feature",
		Settings: map[string]any{"sandboxMode": "read-only"},
	})

	assert.Equal(t, "exec", args[0])
	assert.Contains(t, args, "--json")
	assert.Contains(t, args, "--sandbox")
	assert.Contains(t, args, "read-only")
	assert.Contains(t, args, "gpt-5-codex")
	assert.Equal(t, "implement feature", args[len(args)-1])
}

func TestCodexLike_ParseLine_CommandExecutionAggregatesOnCompletion(t *testing.T) {
	a := provider.NewCodexLike("codex", "Codex CLI", "codex", "")

	started := a.ParseLine(`{"type":"item.started","item":{"id":"1","type":"command_execution","command":"go test"}}`)
	assert.Equal(t, provider.EventIgnore, started.Kind)

	completedOK := a.ParseLine(`{"type":"item.completed","item":{"id":"1","type":"command_execution","command":"go test","exit_code":0}}`)
	require.Equal(t, provider.EventSystem, completedOK.Kind)
	assert.Contains(t, completedOK.Content, "go test")

	completedFail := a.ParseLine(`{"type":"item.completed","item":{"id":"2","type":"command_execution","command":"go test","exit_code":1}}`)
	require.Equal(t, provider.EventError, completedFail.Kind)
}

func TestCodexLike_ParseLine_AgentMessage(t *testing.T) {
	a := provider.NewCodexLike("codex", "Codex CLI", "codex", "")
	ev := a.ParseLine(`{"type":"item.completed","item":{"id":"3","type":"agent_message","text":"done"}}`)
	require.Equal(t, provider.EventText, ev.Kind)
	assert.Equal(t, "done", ev.Content)
}

func TestCodexLike_ParseLine_UnknownTypeIsIgnored(t *testing.T) {
	a := provider.NewCodexLike("codex", "Codex CLI", "codex", "")
	ev := a.ParseLine(`{"type":"thread.started"}`)
	assert.Equal(t, provider.EventIgnore, ev.Kind)
}

func TestCodexLike_ParseLine_MalformedFallsBackToSystem(t *testing.T) {
	a := provider.NewCodexLike("codex", "Codex CLI", "codex", "")
	ev := a.ParseLine("{not valid")
	assert.Equal(t, provider.EventSystem, ev.Kind)
}
