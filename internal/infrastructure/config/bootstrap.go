package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "qi-prompt"

// WorkspaceDirName is the directory name used for workspace-level overrides.
// Place .qi-prompt/ in a project root to override the user-home config.
const WorkspaceDirName = "." + AppName

// HomeDir returns the user's qi-prompt configuration home: ~/.qi-prompt
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures the ~/.qi-prompt directory exists with all default
// content: a starter config.yaml (Load reads whatever --config-path names;
// it has no default path), and the persona fragment
// files the context assembler pulls in as ContextFragment sources ahead of
// conversation history. Safe to call multiple times — only creates missing
// items, never overwrites user edits.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	dirs := []string{
		root,
		filepath.Join(root, "persona"),
		filepath.Join(root, "persona", "variants"),
		filepath.Join(root, "sessions"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	defaults := map[string]string{
		filepath.Join(root, "config.yaml"):                        defaultConfig,
		filepath.Join(root, "persona", "soul.md"):                  defaultSoul,
		filepath.Join(root, "persona", "rules.md"):                 defaultRules,
		filepath.Join(root, "persona", "capabilities.md"):          defaultCapabilities,
		filepath.Join(root, "persona", "coding.md"):                defaultCoding,
		filepath.Join(root, "persona", "variants", "default.md"):   defaultVariantDefault,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("qi-prompt home bootstrap complete", zap.String("home", root), zap.Int("files_created", created))
	} else {
		logger.Debug("qi-prompt home directory OK", zap.String("home", root))
	}

	return nil
}

const defaultConfig = `# qi-prompt configuration — auto-generated on first launch, edit freely.

providers: []
# - name: local
#   type: local
#   base_url: "http://localhost:11434/v1"
#   models: ["qwen2.5-coder"]
#   enabled: true
#   priority: 1

classifier:
  method_priority: ["rule-based"]
  workflow_threshold: 0.7
  tie_band: 0.05
  prompt_conf_min: 0.5
  prompt_conf_max: 0.95

workflow:
  concurrent_tool_cap: 10
  node_timeout: 30s

ui:
  framework: hybrid
  hotkeys_enabled: true

session:
  snapshot_dir: ./sessions
  auto_save_interval: 30s
  ttl: 720h
  index_dialect: sqlite
  index_dsn: ./sessions/index.db

memory:
  enabled: false
  backend: memory      # memory | lancedb
  store_path: ./sessions/vectors
  dimension: 256
  embedder: simple     # simple | ollama
  ollama_url: http://localhost:11434
  ollama_model: nomic-embed-text

logging:
  level: info
  pretty: false
`

const defaultSoul = `You are qi-prompt, a local AI coding assistant running as an interactive CLI.

## Core Identity

- You are direct, precise, and action-oriented.
- You execute tasks autonomously within the active session, explaining briefly after, not before.
- You never fabricate libraries, APIs, files, or capabilities that don't exist in this workspace.
- When uncertain, say so rather than guessing.

## Communication Style

- Be concise. Avoid filler and restating tool output.
- Use technical precision in code-related discussion.
`

const defaultRules = `---
name: rules
priority: 10
---
## Operating Rules

- The current working directory is the user's workspace. Do not assume a file exists without checking.
- Read a file's current content before proposing an edit to it.
- Do not generate placeholder or stub code — produce complete, working implementations.
- Prefer the most specific available tool over a general-purpose shell command.
`

const defaultCapabilities = `---
name: capabilities
priority: 20
---
## Available Capabilities

- File read/write/search within the active workspace
- Shell command execution
- Workflow extraction and execution over registered tools
- Session memory recall across turns

The exact tool set varies with configuration; use only what is currently registered.
`

const defaultCoding = `---
name: coding
priority: 30
requires:
  intent: [coding]
---
## Coding Standards

- Match the existing codebase's style, naming, and structure.
- Keep changes scoped to what was asked; avoid speculative abstractions.
- Never swallow errors silently.
`

const defaultVariantDefault = `---
name: default_variant
priority: 5
---
## Model Instructions

Follow tool call schemas exactly. Think step by step for multi-step tasks before acting.
`
