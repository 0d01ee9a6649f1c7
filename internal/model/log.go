package model

import "time"

// LogKind identifies the normalized shape of a LogEntry's content.
type LogKind string

const (
	LogAssistant LogKind = "assistant"
	LogToolUse   LogKind = "tool_use"
	LogToolResult LogKind = "tool_result"
	LogThinking  LogKind = "thinking"
	LogSystem    LogKind = "system"
	LogError     LogKind = "error"
)

// LogEntry is one line of the append-only logs.jsonl stream.
type LogEntry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       LogKind   `json:"kind"`
	Content    string    `json:"content"`
	ToolName   string    `json:"toolName,omitempty"`
	ToolInput  string    `json:"toolInput,omitempty"`
	AgentIndex *int      `json:"agentIndex,omitempty"`
	Temporary  bool      `json:"temporary,omitempty"`
}

// Truncation limits applied at broadcast time, per component 4.3.
const (
	MaxTextLen       = 800
	MaxSystemLen     = 500
	MaxToolInputLen  = 200
	MaxToolResultLen = 500
	MaxThinkingLen   = 200
)

// MaxLogLines bounds logs.jsonl; truncation is opportunistic on read.
const MaxLogLines = 5000
