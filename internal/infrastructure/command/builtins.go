package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
)

// Deps carries every collaborator a built-in command needs. Fields a
// caller doesn't have available may be left nil; instead of panicking, the
// corresponding command returns a failed result saying what is not
// configured, and status simply omits that section.
type Deps struct {
	Registry      *Registry
	PromptHandler service.PromptHandler
	ToolProvider  service.ToolProvider
	AppState      func() entity.AppStateSnapshot
	Session       func() *entity.SessionState
}

// RegisterBuiltins installs the minimum built-in command set spec.md
// names: help, status, model, providers, tools, workflows, files, project.
func RegisterBuiltins(r *Registry, deps Deps) error {
	specs := []service.CommandSpec{
		{
			Name:        "help",
			Description: "list available commands",
			Category:    "builtin",
			Handler:     helpHandler(r),
		},
		{
			Name:        "status",
			Description: "show application state and active provider",
			Category:    "builtin",
			Handler:     statusHandler(deps),
		},
		{
			Name:        "model",
			Description: "view or switch the active model/provider",
			Category:    "builtin",
			Handler:     modelHandler(deps),
		},
		{
			Name:        "providers",
			Description: "list configured providers",
			Category:    "builtin",
			Handler:     providersHandler(deps),
		},
		{
			Name:        "tools",
			Description: "list available tools",
			Category:    "builtin",
			Handler:     toolsHandler(deps),
		},
		{
			Name:        "workflows",
			Description: "show the active session's workflow, if any",
			Category:    "builtin",
			Handler:     workflowsHandler(deps),
		},
		{
			Name:        "files",
			Description: "list resolved @path references in the active session",
			Category:    "builtin",
			Handler:     filesHandler(deps),
		},
		{
			Name:        "project",
			Description: "show the current session summary",
			Category:    "builtin",
			Handler:     projectHandler(deps),
		},
	}

	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func helpHandler(r *Registry) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		specs := r.List()
		sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

		var sb strings.Builder
		for _, s := range specs {
			fmt.Fprintf(&sb, "/%-12s %s\n", s.Name, s.Description)
		}
		return &service.CommandResult{Success: true, Message: sb.String()}, nil
	}
}

func statusHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		var sb strings.Builder
		if deps.AppState != nil {
			snap := deps.AppState()
			fmt.Fprintf(&sb, "state: %s.%s", snap.Top, snap.Sub)
			if snap.TaskName != "" {
				fmt.Fprintf(&sb, " (%s)", snap.TaskName)
			}
			sb.WriteString("\n")
		}
		if deps.PromptHandler != nil {
			for _, p := range deps.PromptHandler.GetAvailableProviders() {
				marker := " "
				if p.Enabled {
					marker = "*"
				}
				fmt.Fprintf(&sb, "%s %s (%s)\n", marker, p.Name, p.Type)
			}
		}
		return &service.CommandResult{Success: true, Message: sb.String()}, nil
	}
}

func modelHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		if deps.PromptHandler == nil {
			return &service.CommandResult{Success: false, Message: "no prompt handler configured"}, nil
		}
		if len(argv) == 0 {
			var names []string
			for _, p := range deps.PromptHandler.GetAvailableProviders() {
				names = append(names, p.Name)
			}
			return &service.CommandResult{Success: true, Message: "available providers: " + strings.Join(names, ", ")}, nil
		}
		if err := deps.PromptHandler.SetActiveProvider(argv[0]); err != nil {
			return &service.CommandResult{Success: false, Message: err.Error()}, nil
		}
		return &service.CommandResult{Success: true, Message: "active provider set to " + argv[0]}, nil
	}
}

func providersHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		if deps.PromptHandler == nil {
			return &service.CommandResult{Success: false, Message: "no prompt handler configured"}, nil
		}
		providers := deps.PromptHandler.GetAvailableProviders()
		data := make(map[string]interface{}, len(providers))
		var sb strings.Builder
		for _, p := range providers {
			data[p.Name] = p
			fmt.Fprintf(&sb, "%s  type=%s  enabled=%v  circuit_open=%v\n", p.Name, p.Type, p.Enabled, p.CircuitOpen)
		}
		return &service.CommandResult{Success: true, Message: sb.String(), Data: data}, nil
	}
}

func toolsHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		if deps.ToolProvider == nil {
			return &service.CommandResult{Success: false, Message: "no tool provider configured"}, nil
		}
		tools, err := deps.ToolProvider.ListAvailableTools(ctx)
		if err != nil {
			return &service.CommandResult{Success: false, Message: err.Error()}, nil
		}
		var sb strings.Builder
		for _, t := range tools {
			fmt.Fprintf(&sb, "%s [%s] %s\n", t.Name, t.Category, t.Description)
		}
		return &service.CommandResult{Success: true, Message: sb.String()}, nil
	}
}

func workflowsHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		if deps.Session == nil {
			return &service.CommandResult{Success: false, Message: "no active session"}, nil
		}
		sess := deps.Session()
		if sess == nil || sess.ActiveWorkflow() == nil {
			return &service.CommandResult{Success: true, Message: "no active workflow"}, nil
		}
		wf := sess.ActiveWorkflow()
		return &service.CommandResult{
			Success: true,
			Message: fmt.Sprintf("%s: %d nodes, %d edges", wf.Name, len(wf.Nodes), len(wf.Edges)),
		}, nil
	}
}

func filesHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		if deps.Session == nil {
			return &service.CommandResult{Success: false, Message: "no active session"}, nil
		}
		sess := deps.Session()
		if sess == nil {
			return &service.CommandResult{Success: true, Message: "no files referenced"}, nil
		}
		refs := sess.FileReferences()
		if len(refs) == 0 {
			return &service.CommandResult{Success: true, Message: "no files referenced"}, nil
		}
		var sb strings.Builder
		for _, f := range refs {
			fmt.Fprintf(&sb, "%s (resolved=%v size=%d truncated=%v)\n", f.Path, f.Resolved, f.Size, f.Truncated)
		}
		return &service.CommandResult{Success: true, Message: sb.String()}, nil
	}
}

func projectHandler(deps Deps) service.CommandHandler {
	return func(ctx context.Context, argv []string) (*service.CommandResult, error) {
		if deps.Session == nil {
			return &service.CommandResult{Success: false, Message: "no active session"}, nil
		}
		sess := deps.Session()
		if sess == nil {
			return &service.CommandResult{Success: true, Message: "no active session"}, nil
		}
		return &service.CommandResult{
			Success: true,
			Message: fmt.Sprintf("session %s, %d turns", sess.ID(), len(sess.Conversation())),
		}, nil
	}
}
