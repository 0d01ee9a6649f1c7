package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// claudeLikeMessage is the subset of the Claude Code stream-json wire
// format this adapter cares about, grounded on pkg/claudecode/types.go's
// CLIMessage/AssistantMessage/ContentBlock shapes — narrowed from that
// package's full bidirectional control-request protocol down to the
// read-only "one stdout line in, one AgentEvent out" contract spec §4.3
// requires.
type claudeLikeMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Message *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Result  json.RawMessage `json:"result"`
	IsError bool            `json:"is_error"`
}

type claudeLikeContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	Thinking  string         `json:"thinking"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string         `json:"tool_use_id"`
	Content   string         `json:"content"`
	IsError   bool           `json:"is_error"`
}

// claudeLikeNoiseSubtypes are system/control subtypes the UI should
// never see, per spec §4.3.
var claudeLikeNoiseSubtypes = map[string]bool{
	"hook_started":  true,
	"hook_response": true,
	"init":          true,
	"config":        true,
}

// ClaudeLike is the streaming "claude-like" provider adapter: argv builds
// a stream-json invocation, parseLine follows the assistant/tool_use/
// system/result message-type discriminator from pkg/claudecode's
// CLIMessage.
type ClaudeLike struct {
	name, displayName, binary, defaultModel string
}

// NewClaudeLike constructs the adapter. binary/defaultModel are supplied
// by AgentConfig so the same adapter shape can be reused for
// differently-named forks of the same CLI.
func NewClaudeLike(name, displayName, binary, defaultModel string) *ClaudeLike {
	return &ClaudeLike{name: name, displayName: displayName, binary: binary, defaultModel: defaultModel}
}

func (a *ClaudeLike) Name() string         { return a.name }
func (a *ClaudeLike) DisplayName() string  { return a.displayName }
func (a *ClaudeLike) Binary() string       { return a.binary }
func (a *ClaudeLike) DefaultModel() string { return a.defaultModel }

func (a *ClaudeLike) Capabilities() Capabilities {
	return Capabilities{
		Streaming:      true,
		MaxTurns:       true,
		SystemPrompt:   true,
		AgentTeams:     true,
		ModelSelection: true,
		DangerousMode:  true,
	}
}

func (a *ClaudeLike) Settings() []SettingDescriptor {
	return []SettingDescriptor{
		{Key: "skipPermissions", Label: "Skip permission prompts", Type: SettingBoolean, Default: true},
		{Key: "disableSlashCommands", Label: "Disable slash commands", Type: SettingBoolean, Default: false},
	}
}

// BuildArgs builds the child argv: the prompt, stream-json output, an
// optional max-turns bound, model flag, skip-permissions flag, optional
// system-prompt flag, optional slash-command-disable flag (spec §4.3a).
func (a *ClaudeLike) BuildArgs(ctx SessionContext) []string {
	args := []string{
		"-p", ctx.Prompt,
		"--output-format", "stream-json",
		"--verbose",
	}
	if ctx.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", ctx.MaxTurns))
	}
	model := ctx.Model
	if model == "" {
		model = a.defaultModel
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if skip, ok := ctx.Settings["skipPermissions"].(bool); !ok || skip {
		args = append(args, "--dangerously-skip-permissions")
	}
	if ctx.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", ctx.SystemPrompt)
	}
	if disable, ok := ctx.Settings["disableSlashCommands"].(bool); ok && disable {
		args = append(args, "--disable-slash-commands")
	}
	return args
}

// BuildEnv contributes no extra environment variables for this adapter;
// the claude-like CLI reads its credentials from the host environment
// the child inherits.
func (a *ClaudeLike) BuildEnv(ctx SessionContext) map[string]string {
	return nil
}

// ParseLine is a total function over one stdout line, per spec §4.3.
func (a *ClaudeLike) ParseLine(line string) AgentEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return AgentEvent{Kind: EventIgnore}
	}

	var msg claudeLikeMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return AgentEvent{Kind: EventSystem, Content: Truncate(line, 500)}
	}

	switch msg.Type {
	case "system":
		if claudeLikeNoiseSubtypes[msg.Subtype] {
			return AgentEvent{Kind: EventIgnore}
		}
		return AgentEvent{Kind: EventSystem, Content: Truncate(fmt.Sprintf("system: %s", msg.Subtype), 500)}

	case "assistant":
		return a.parseAssistant(msg)

	case "result":
		return a.parseResult(msg)

	default:
		return AgentEvent{Kind: EventIgnore}
	}
}

func (a *ClaudeLike) parseAssistant(msg claudeLikeMessage) AgentEvent {
	if msg.Message == nil || len(msg.Message.Content) == 0 {
		return AgentEvent{Kind: EventIgnore}
	}

	var asString string
	if err := json.Unmarshal(msg.Message.Content, &asString); err == nil {
		if LooksLikeJSON(asString) {
			return AgentEvent{Kind: EventThinking, Content: SummarizeJSONBlob(asString)}
		}
		return AgentEvent{Kind: EventText, Content: Truncate(asString, MaxTextLen)}
	}

	var blocks []claudeLikeContentBlock
	if err := json.Unmarshal(msg.Message.Content, &blocks); err != nil {
		return AgentEvent{Kind: EventThinking, Content: SummarizeJSONBlob(string(msg.Message.Content))}
	}

	for _, block := range blocks {
		switch block.Type {
		case "text":
			if LooksLikeJSON(block.Text) {
				return AgentEvent{Kind: EventThinking, Content: SummarizeJSONBlob(block.Text)}
			}
			return AgentEvent{Kind: EventText, Content: Truncate(block.Text, MaxTextLen)}
		case "thinking":
			return AgentEvent{Kind: EventThinking, Content: Truncate(block.Thinking, MaxThinkingLen)}
		case "tool_use":
			input, _ := json.Marshal(block.Input)
			return AgentEvent{Kind: EventToolUse, ToolName: block.Name, ToolInput: Truncate(string(input), MaxToolInputLen)}
		case "tool_result":
			content := block.Content
			if block.IsError {
				return AgentEvent{Kind: EventError, Content: Truncate(content, MaxSystemLen)}
			}
			return AgentEvent{Kind: EventToolResult, Content: Truncate(content, MaxToolResultLen)}
		}
	}
	return AgentEvent{Kind: EventIgnore}
}

func (a *ClaudeLike) parseResult(msg claudeLikeMessage) AgentEvent {
	if msg.IsError {
		var errText string
		if err := json.Unmarshal(msg.Result, &errText); err == nil {
			return AgentEvent{Kind: EventError, Content: Truncate(errText, MaxSystemLen)}
		}
		return AgentEvent{Kind: EventError, Content: "agent reported an error result"}
	}
	return AgentEvent{Kind: EventSystem, Content: "session result received"}
}

// IsSuccessExit reports success only for a clean exit; the claude-like
// CLI does not use a distinct "partial success" exit code.
func (a *ClaudeLike) IsSuccessExit(code int) bool { return code == 0 }

// IsNoiseLine coarsely pre-filters known-empty or keepalive lines before
// the full JSON parse, per the optional adapter hook in spec §4.3.
func (a *ClaudeLike) IsNoiseLine(line string) bool {
	return strings.TrimSpace(line) == ""
}
