package provider

import "github.com/kilnworks/autodev/internal/common/config"

// NewRegistryFromConfig registers the three concrete adapters spec §4.3
// names, using the binaries/default model configured in AgentConfig.
func NewRegistryFromConfig(cfg config.AgentConfig) *Registry {
	r := NewRegistry()
	r.Register(NewClaudeLike("claude", "Claude Code", cfg.ClaudeBinary, cfg.DefaultModel))
	r.Register(NewCodexLike("codex", "Codex CLI", cfg.CodexBinary, cfg.DefaultModel))
	r.Register(NewOpencodeLike("opencode", "OpenCode", cfg.OpencodeBinary, cfg.DefaultModel))
	return r
}
