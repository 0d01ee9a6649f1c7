// Package provider defines the adapter contract that lets the
// orchestrator drive heterogeneous AI coding-assistant CLIs through one
// uniform interface: build the child's argv/env, and parse one line of
// its stdout into a normalized AgentEvent. Adapters are pure and stateless
// — no adapter may hold per-session state.
package provider

// EventKind identifies the normalized shape of a parsed line.
type EventKind string

const (
	EventText      EventKind = "text"
	EventThinking  EventKind = "thinking"
	EventToolUse   EventKind = "tool_use"
	EventToolResult EventKind = "tool_result"
	EventSystem    EventKind = "system"
	EventError     EventKind = "error"
	EventIgnore    EventKind = "ignore"
)

// AgentEvent is the normalized output of parsing one stdout line.
type AgentEvent struct {
	Kind      EventKind
	Content   string
	ToolName  string
	ToolInput string
}

// SettingType enumerates the kinds a provider setting descriptor can take.
type SettingType string

const (
	SettingBoolean SettingType = "boolean"
	SettingString  SettingType = "string"
	SettingSelect  SettingType = "select"
	SettingNumber  SettingType = "number"
)

// SettingDescriptor describes one provider-specific configuration knob,
// surfaced to the UI so it can render an appropriate control.
type SettingDescriptor struct {
	Key         string
	Label       string
	Description string
	Type        SettingType
	Default     any
	Options     []string // for SettingSelect
	Min, Max    *float64 // for SettingNumber
}

// Capabilities is the vector of optional behaviors a provider supports.
type Capabilities struct {
	Streaming      bool
	MaxTurns       bool
	SystemPrompt   bool
	AgentTeams     bool
	ModelSelection bool
	DangerousMode  bool
}

// SessionContext carries everything an adapter needs to build a child
// invocation for one session. It is read-only from the adapter's
// perspective — buildArgs/buildEnv must be pure functions of this value.
type SessionContext struct {
	Prompt       string
	Model        string
	MaxTurns     int
	SystemPrompt string
	Settings     map[string]any
}

// Adapter is the contract every provider must satisfy. Implementations
// must be stateless: buildArgs, buildEnv, parseLine, and isSuccessExit are
// pure functions of their arguments.
type Adapter interface {
	Name() string
	DisplayName() string
	Binary() string
	DefaultModel() string
	Capabilities() Capabilities
	Settings() []SettingDescriptor

	BuildArgs(ctx SessionContext) []string
	BuildEnv(ctx SessionContext) map[string]string
	ParseLine(line string) AgentEvent
	IsSuccessExit(code int) bool
	IsNoiseLine(line string) bool
}
