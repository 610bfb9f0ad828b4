// Package config loads and hot-watches the application configuration.
// Unknown top-level keys fail closed (viper.UnmarshalExact); environment
// overrides apply after the file via AutomaticEnv/SetEnvPrefix.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
	"github.com/qi-prompt/qi-prompt/pkg/result"
)

// ProviderConfig is one entry of the `providers` config section.
type ProviderConfig struct {
	Name         string   `mapstructure:"name"`
	Type         string   `mapstructure:"type"` // local | remote
	BaseURL      string   `mapstructure:"base_url"`
	APIKey       string   `mapstructure:"api_key"`
	Models       []string `mapstructure:"models"`
	Capabilities []string `mapstructure:"capabilities"`
	Enabled      bool     `mapstructure:"enabled"`
	Priority     int      `mapstructure:"priority"`
}

// ClassifierConfig is the `classifier` config section.
type ClassifierConfig struct {
	MethodPriority    []string `mapstructure:"method_priority"`
	WorkflowThreshold float64  `mapstructure:"workflow_threshold"`
	TieBand           float64  `mapstructure:"tie_band"`
	PromptConfMin     float64  `mapstructure:"prompt_conf_min"`
	PromptConfMax     float64  `mapstructure:"prompt_conf_max"`
}

// WorkflowConfig is the `workflow` config section.
type WorkflowConfig struct {
	ConcurrentToolCap int           `mapstructure:"concurrent_tool_cap"`
	NodeTimeout       time.Duration `mapstructure:"node_timeout"`
}

// UIConfig is the `ui` config section.
type UIConfig struct {
	Framework      string `mapstructure:"framework"` // readline | rich | hybrid
	HotkeysEnabled bool   `mapstructure:"hotkeys_enabled"`
}

// SessionConfig is the `session` config section.
type SessionConfig struct {
	SnapshotDir      string        `mapstructure:"snapshot_dir"`
	AutoSaveInterval time.Duration `mapstructure:"auto_save_interval"`
	TTL              time.Duration `mapstructure:"ttl"`
	IndexDSN         string        `mapstructure:"index_dsn"`
	IndexDialect     string        `mapstructure:"index_dialect"` // sqlite | postgres
}

// MemoryConfig is the `memory` config section: the optional long-term
// retrieval backend behind the context assembler's service.Retriever hook.
type MemoryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"`      // memory | lancedb
	StorePath   string `mapstructure:"store_path"`    // lancedb only
	Dimension   int    `mapstructure:"dimension"`     // memory backend's SimpleEmbedder width
	Embedder    string `mapstructure:"embedder"`      // simple | ollama
	OllamaURL   string `mapstructure:"ollama_url"`
	OllamaModel string `mapstructure:"ollama_model"`
}

// LoggingConfig is the `logging` config section.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config is the top-level, immutable-after-load configuration.
type Config struct {
	Providers  []ProviderConfig `mapstructure:"providers"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	UI         UIConfig         `mapstructure:"ui"`
	Session    SessionConfig    `mapstructure:"session"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("classifier.method_priority", []string{"rule-based"})
	v.SetDefault("classifier.workflow_threshold", 0.7)
	v.SetDefault("classifier.tie_band", 0.05)
	v.SetDefault("classifier.prompt_conf_min", 0.5)
	v.SetDefault("classifier.prompt_conf_max", 0.95)

	v.SetDefault("workflow.concurrent_tool_cap", 10)
	v.SetDefault("workflow.node_timeout", "30s")

	v.SetDefault("ui.framework", "hybrid")
	v.SetDefault("ui.hotkeys_enabled", true)

	v.SetDefault("session.snapshot_dir", "./sessions")
	v.SetDefault("session.auto_save_interval", "30s")
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("session.index_dialect", "sqlite")
	v.SetDefault("session.index_dsn", "./sessions/index.db")

	v.SetDefault("memory.enabled", false)
	v.SetDefault("memory.backend", "memory")
	v.SetDefault("memory.store_path", "./sessions/vectors")
	v.SetDefault("memory.dimension", 256)
	v.SetDefault("memory.embedder", "simple")
	v.SetDefault("memory.ollama_url", "http://localhost:11434")
	v.SetDefault("memory.ollama_model", "nomic-embed-text")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// Load reads configPath (YAML) and an optional envPath (dotenv-style
// overrides), validates against the bound struct with UnmarshalExact so
// unknown top-level keys fail closed, and applies QI_-prefixed environment
// variable overrides last.
func Load(configPath, envPath string) result.Result[*Config] {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return result.Err[*Config](apperrors.WrapSystem(apperrors.CodeInvalidConfig, "failed to read config file", err))
	}

	if envPath != "" {
		ev := viper.New()
		ev.SetConfigFile(envPath)
		ev.SetConfigType("dotenv")
		if err := ev.ReadInConfig(); err == nil {
			for _, key := range ev.AllKeys() {
				v.Set(key, ev.Get(key))
			}
		}
	}

	v.SetEnvPrefix("QI")
	v.AutomaticEnv()

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return result.Err[*Config](apperrors.NewValidation(apperrors.CodeInvalidConfig, fmt.Sprintf("config validation failed: %v", err)))
	}

	return result.Ok(&cfg)
}
