package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/provider"
)

func TestClaudeLike_BuildArgs(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "claude-opus-4")

	args := a.BuildArgs(provider.SessionContext{
		Prompt:       "hello",
		MaxTurns:     40,
		SystemPrompt: "be terse",
		Settings:     map[string]any{"skipPermissions": true},
	})

	assert.Contains(t, args, "hello")
	assert.Contains(t, args, "stream-json")
	assert.Contains(t, args, "--max-turns")
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "claude-opus-4")
	assert.Contains(t, args, "--dangerously-skip-permissions")
	assert.Contains(t, args, "--append-system-prompt")
}

func TestClaudeLike_ParseLine_EmptyIsIgnore(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	ev := a.ParseLine("")
	assert.Equal(t, provider.EventIgnore, ev.Kind)
}

func TestClaudeLike_ParseLine_NoiseSubtypeIsIgnored(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	ev := a.ParseLine(`{"type":"system","subtype":"hook_started"}`)
	assert.Equal(t, provider.EventIgnore, ev.Kind)
}

func TestClaudeLike_ParseLine_AssistantText(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	ev := a.ParseLine(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hi there"}]}}`)
	require.Equal(t, provider.EventText, ev.Kind)
	assert.Equal(t, "hi there", ev.Content)
}

func TestClaudeLike_ParseLine_AssistantToolUse(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	ev := a.ParseLine(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}}`)
	require.Equal(t, provider.EventToolUse, ev.Kind)
	assert.Equal(t, "Bash", ev.ToolName)
	assert.Contains(t, ev.ToolInput, "ls")
}

func TestClaudeLike_ParseLine_JSONTextBecomesThinking(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	ev := a.ParseLine(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"{\"name\":\"Bash\",\"input\":{\"command\":\"ls\"}}"}]}}`)
	require.Equal(t, provider.EventThinking, ev.Kind)
	assert.LessOrEqual(t, len(ev.Content), provider.MaxSummaryLen)
}

func TestClaudeLike_ParseLine_MalformedJSONFallsBackToSystem(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	ev := a.ParseLine("not json at all")
	assert.Equal(t, provider.EventSystem, ev.Kind)
}

func TestClaudeLike_IsSuccessExit(t *testing.T) {
	a := provider.NewClaudeLike("claude", "Claude Code", "claude", "")
	assert.True(t, a.IsSuccessExit(0))
	assert.False(t, a.IsSuccessExit(1))
}
