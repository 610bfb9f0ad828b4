package service

import "context"

// CommandResult is the uniform outcome of executing a command. Unknown
// commands return {Success: false, Message: "unknown command"} — never a
// thrown error.
type CommandResult struct {
	Success bool
	Message string
	Data    map[string]interface{}
}

// CommandHandler executes one registered command given its parsed argv.
type CommandHandler func(ctx context.Context, argv []string) (*CommandResult, error)

// CommandSpec is the registration record for one command.
type CommandSpec struct {
	Name        string
	Description string
	Category    string
	ArgSchema   map[string]interface{}
	Handler     CommandHandler
}

// CommandRegistry holds the built-in and app-registered commands.
// Registration is idempotent by name.
type CommandRegistry interface {
	// Register adds a command. Re-registering the same name with an
	// identical handler signature succeeds; a different signature under an
	// existing name fails with COMMAND_CONFLICT and leaves the original
	// intact.
	Register(spec CommandSpec) error
	// Execute looks up argv[0]'s command and invokes it. Unknown commands
	// never error — they return {Success:false}.
	Execute(ctx context.Context, argv []string) (*CommandResult, error)
	// List returns every registered command's spec (handler omitted).
	List() []CommandSpec
	// Get returns the spec for a single command name.
	Get(name string) (CommandSpec, bool)
}
