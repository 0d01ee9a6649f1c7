package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// opencodeLikeLine is the subset of `opencode run --format json`'s
// non-streaming output this adapter parses, grounded on
// internal/agentctl/server/adapter/transport/opencode/normalize.go's
// by-tool-name normalization, narrowed to spec §4.3c's "text, tool_use,
// error, step_*" kind vocabulary.
type opencodeLikeLine struct {
	Kind    string         `json:"kind"`
	Text    string         `json:"text"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Output  string         `json:"output"`
	Message string         `json:"message"`
}

// OpencodeLike is the non-streaming "opencode-like" provider adapter.
type OpencodeLike struct {
	name, displayName, binary, defaultModel string
}

func NewOpencodeLike(name, displayName, binary, defaultModel string) *OpencodeLike {
	return &OpencodeLike{name: name, displayName: displayName, binary: binary, defaultModel: defaultModel}
}

func (a *OpencodeLike) Name() string         { return a.name }
func (a *OpencodeLike) DisplayName() string  { return a.displayName }
func (a *OpencodeLike) Binary() string       { return a.binary }
func (a *OpencodeLike) DefaultModel() string { return a.defaultModel }

func (a *OpencodeLike) Capabilities() Capabilities {
	return Capabilities{
		Streaming:      false,
		MaxTurns:       false,
		SystemPrompt:   true,
		AgentTeams:     false,
		ModelSelection: true,
		DangerousMode:  false,
	}
}

func (a *OpencodeLike) Settings() []SettingDescriptor {
	return nil
}

// BuildArgs builds the non-streaming `run --format json` invocation
// (spec §4.3c).
func (a *OpencodeLike) BuildArgs(ctx SessionContext) []string {
	args := []string{"run", "--format", "json"}
	model := ctx.Model
	if model == "" {
		model = a.defaultModel
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if ctx.SystemPrompt != "" {
		args = append(args, "--system-prompt", ctx.SystemPrompt)
	}
	args = append(args, ctx.Prompt)
	return args
}

func (a *OpencodeLike) BuildEnv(ctx SessionContext) map[string]string {
	return nil
}

// ParseLine is a total function over one stdout line, per spec §4.3.
func (a *OpencodeLike) ParseLine(line string) AgentEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return AgentEvent{Kind: EventIgnore}
	}

	var l opencodeLikeLine
	if err := json.Unmarshal([]byte(line), &l); err != nil {
		return AgentEvent{Kind: EventSystem, Content: Truncate(line, MaxSystemLen)}
	}

	switch {
	case l.Kind == "text":
		if LooksLikeJSON(l.Text) {
			return AgentEvent{Kind: EventThinking, Content: SummarizeJSONBlob(l.Text)}
		}
		return AgentEvent{Kind: EventText, Content: Truncate(l.Text, MaxTextLen)}

	case l.Kind == "tool_use":
		input, _ := json.Marshal(l.Args)
		return AgentEvent{Kind: EventToolUse, ToolName: l.Tool, ToolInput: Truncate(string(input), MaxToolInputLen)}

	case l.Kind == "error":
		return AgentEvent{Kind: EventError, Content: Truncate(l.Message, MaxSystemLen)}

	case strings.HasPrefix(l.Kind, "step_"):
		return AgentEvent{Kind: EventSystem, Content: Truncate(fmt.Sprintf("%s: %s", l.Kind, l.Text), MaxSystemLen)}

	default:
		return AgentEvent{Kind: EventIgnore}
	}
}

// IsSuccessExit reports success only for a clean exit.
func (a *OpencodeLike) IsSuccessExit(code int) bool { return code == 0 }

func (a *OpencodeLike) IsNoiseLine(line string) bool {
	return strings.TrimSpace(line) == ""
}
