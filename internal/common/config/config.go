// Package config provides configuration management for autodev.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for autodev.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Data         DataConfig         `mapstructure:"data"`
	Agent        AgentConfig        `mapstructure:"agent"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DataConfig holds the root directory under which per-project state lives.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// AgentConfig holds provider-binary configuration.
type AgentConfig struct {
	ClaudeBinary  string `mapstructure:"claudeBinary"`
	CodexBinary   string `mapstructure:"codexBinary"`
	OpencodeBinary string `mapstructure:"opencodeBinary"`
	DefaultModel  string `mapstructure:"defaultModel"`
}

// AuthConfig holds the server auth token, applied to both HTTP requests
// and subscription handshakes. Empty means unauthenticated.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// OrchestratorConfig holds the orchestrator's tunable timings.
type OrchestratorConfig struct {
	FirstOutputHeartbeatSeconds int     `mapstructure:"firstOutputHeartbeatSeconds"`
	StopGraceSeconds            int     `mapstructure:"stopGraceSeconds"`
	LoopKillGraceSeconds        int     `mapstructure:"loopKillGraceSeconds"`
	ChainDelaySeconds           int     `mapstructure:"chainDelaySeconds"`
	WatcherIntervalSeconds      int     `mapstructure:"watcherIntervalSeconds"`
	LoopWindowSize              int     `mapstructure:"loopWindowSize"`
	LoopSimilarityThreshold     float64 `mapstructure:"loopSimilarityThreshold"`
	MaxConcurrency              int     `mapstructure:"maxConcurrency"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

func (o *OrchestratorConfig) FirstOutputHeartbeat() time.Duration {
	return time.Duration(o.FirstOutputHeartbeatSeconds) * time.Second
}

func (o *OrchestratorConfig) StopGrace() time.Duration {
	return time.Duration(o.StopGraceSeconds) * time.Second
}

func (o *OrchestratorConfig) LoopKillGrace() time.Duration {
	return time.Duration(o.LoopKillGraceSeconds) * time.Second
}

func (o *OrchestratorConfig) ChainDelay() time.Duration {
	return time.Duration(o.ChainDelaySeconds) * time.Second
}

func (o *OrchestratorConfig) WatcherInterval() time.Duration {
	return time.Duration(o.WatcherIntervalSeconds) * time.Second
}

// detectDefaultLogFormat mirrors the logger package's own detection so
// config-driven and zero-config startup agree on a default.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("AUTODEV_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("data.dir", "./autodev-data")

	v.SetDefault("agent.claudeBinary", "claude")
	v.SetDefault("agent.codexBinary", "codex")
	v.SetDefault("agent.opencodeBinary", "opencode")
	v.SetDefault("agent.defaultModel", "")

	v.SetDefault("auth.token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("orchestrator.firstOutputHeartbeatSeconds", 15)
	v.SetDefault("orchestrator.stopGraceSeconds", 5)
	v.SetDefault("orchestrator.loopKillGraceSeconds", 3)
	v.SetDefault("orchestrator.chainDelaySeconds", 3)
	v.SetDefault("orchestrator.watcherIntervalSeconds", 3)
	v.SetDefault("orchestrator.loopWindowSize", 5)
	v.SetDefault("orchestrator.loopSimilarityThreshold", 0.5)
	v.SetDefault("orchestrator.maxConcurrency", 8)
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AUTODEV_ with each "." in a key
// replaced by "_" (e.g. AUTODEV_SERVER_PORT); AUTODEV_TOKEN,
// AUTODEV_DATA_DIR and AUTODEV_LOG_LEVEL are bound explicitly.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("AUTODEV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("auth.token", "AUTODEV_TOKEN")
	_ = v.BindEnv("data.dir", "AUTODEV_DATA_DIR")
	_ = v.BindEnv("logging.level", "AUTODEV_LOG_LEVEL")

	v.SetConfigName("autodev")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/autodev/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Data.Dir == "" {
		errs = append(errs, "data.dir must be set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text, console")
	}

	if cfg.Orchestrator.LoopWindowSize < 2 {
		errs = append(errs, "orchestrator.loopWindowSize must be at least 2")
	}
	if cfg.Orchestrator.MaxConcurrency < 1 {
		errs = append(errs, "orchestrator.maxConcurrency must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
