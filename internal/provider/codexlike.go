package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// codexLikeLine is the subset of the `codex exec --json` notification
// envelope this adapter parses, grounded on
// internal/agentctl/server/adapter/transport/codex/codex_items.go's
// item/started + item/completed pairing — flattened from that package's
// bidirectional JSON-RPC session into a single stateless line parser,
// since spec §4.3's provider contract has no outbound turn/session
// management, only inbound stdout lines.
type codexLikeLine struct {
	Type string `json:"type"`
	Item *struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Text    string `json:"text"`
		Command string `json:"command"`
		ExitCode *int  `json:"exit_code"`
		Output  string `json:"aggregated_output"`
	} `json:"item"`
}

const (
	codexItemAgentMessage     = "agent_message"
	codexItemReasoning        = "reasoning"
	codexItemToolCall         = "tool_call"
	codexItemToolCallOutput   = "tool_call_output"
	codexItemCommandExecution = "command_execution"
)

// CodexLike is the one-shot "codex-like" provider adapter: `exec --json`
// argv with a sandbox mode, parsing item.started/item.completed lines.
type CodexLike struct {
	name, displayName, binary, defaultModel string
}

func NewCodexLike(name, displayName, binary, defaultModel string) *CodexLike {
	return &CodexLike{name: name, displayName: displayName, binary: binary, defaultModel: defaultModel}
}

func (a *CodexLike) Name() string         { return a.name }
func (a *CodexLike) DisplayName() string  { return a.displayName }
func (a *CodexLike) Binary() string       { return a.binary }
func (a *CodexLike) DefaultModel() string { return a.defaultModel }

func (a *CodexLike) Capabilities() Capabilities {
	return Capabilities{
		Streaming:      false,
		MaxTurns:       false,
		SystemPrompt:   false,
		AgentTeams:     false,
		ModelSelection: true,
		DangerousMode:  true,
	}
}

func (a *CodexLike) Settings() []SettingDescriptor {
	return []SettingDescriptor{
		{
			Key: "sandboxMode", Label: "Sandbox mode", Type: SettingSelect,
			Default: "workspace-write",
			Options: []string{"read-only", "workspace-write", "danger-full-access"},
		},
	}
}

// BuildArgs builds the `exec --json` invocation with a sandbox mode
// drawn from provider settings (spec §4.3b).
func (a *CodexLike) BuildArgs(ctx SessionContext) []string {
	sandbox, _ := ctx.Settings["sandboxMode"].(string)
	if sandbox == "" {
		sandbox = "workspace-write"
	}
	args := []string{"exec", "--json", "--sandbox", sandbox}
	model := ctx.Model
	if model == "" {
		model = a.defaultModel
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, ctx.Prompt)
	return args
}

func (a *CodexLike) BuildEnv(ctx SessionContext) map[string]string {
	return nil
}

// ParseLine is a total function over one stdout line, per spec §4.3.
func (a *CodexLike) ParseLine(line string) AgentEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return AgentEvent{Kind: EventIgnore}
	}

	var l codexLikeLine
	if err := json.Unmarshal([]byte(line), &l); err != nil {
		return AgentEvent{Kind: EventSystem, Content: Truncate(line, MaxSystemLen)}
	}

	switch l.Type {
	case "item.started":
		return a.parseItem(l, false)
	case "item.completed":
		return a.parseItem(l, true)
	default:
		return AgentEvent{Kind: EventIgnore}
	}
}

func (a *CodexLike) parseItem(l codexLikeLine, completed bool) AgentEvent {
	if l.Item == nil {
		return AgentEvent{Kind: EventIgnore}
	}
	item := l.Item

	switch item.Type {
	case codexItemAgentMessage:
		if !completed {
			return AgentEvent{Kind: EventIgnore}
		}
		if LooksLikeJSON(item.Text) {
			return AgentEvent{Kind: EventThinking, Content: SummarizeJSONBlob(item.Text)}
		}
		return AgentEvent{Kind: EventText, Content: Truncate(item.Text, MaxTextLen)}

	case codexItemReasoning:
		if !completed {
			return AgentEvent{Kind: EventIgnore}
		}
		return AgentEvent{Kind: EventThinking, Content: Truncate(item.Text, MaxThinkingLen)}

	case codexItemToolCall:
		if completed {
			return AgentEvent{Kind: EventIgnore}
		}
		return AgentEvent{Kind: EventToolUse, ToolName: codexItemToolCall, ToolInput: Truncate(item.Command, MaxToolInputLen)}

	case codexItemToolCallOutput:
		if !completed {
			return AgentEvent{Kind: EventIgnore}
		}
		return AgentEvent{Kind: EventToolResult, Content: Truncate(item.Output, MaxToolResultLen)}

	case codexItemCommandExecution:
		// Aggregates command + exit code into a single compact system
		// line, only once the command has finished (spec §4.3b).
		if !completed {
			return AgentEvent{Kind: EventIgnore}
		}
		exit := 0
		if item.ExitCode != nil {
			exit = *item.ExitCode
		}
		summary := fmt.Sprintf("$ %s (exit %d)", item.Command, exit)
		if exit != 0 {
			return AgentEvent{Kind: EventError, Content: Truncate(summary, MaxSystemLen)}
		}
		return AgentEvent{Kind: EventSystem, Content: Truncate(summary, MaxSystemLen)}

	default:
		return AgentEvent{Kind: EventIgnore}
	}
}

// IsSuccessExit reports success only for a clean exit.
func (a *CodexLike) IsSuccessExit(code int) bool { return code == 0 }

func (a *CodexLike) IsNoiseLine(line string) bool {
	return strings.TrimSpace(line) == ""
}
