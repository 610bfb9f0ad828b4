// Package command implements the command registry and its built-in
// command set.
package command

import (
	"context"
	"reflect"
	"sync"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

// Registry is the in-memory command registry: a map guarded by an
// RWMutex, the same shape as the tool registry.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]service.CommandSpec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]service.CommandSpec)}
}

var _ service.CommandRegistry = (*Registry)(nil)

// Register adds spec under spec.Name. Re-registering the same name with an
// identical Description/Category/ArgSchema is a no-op; anything else
// conflicts.
func (r *Registry) Register(spec service.CommandSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.commands[spec.Name]
	if exists {
		if !sameSignature(existing, spec) {
			return apperrors.NewBusiness(apperrors.CodeCommandConflict, "command "+spec.Name+" already registered with a different signature")
		}
		return nil
	}
	r.commands[spec.Name] = spec
	return nil
}

func sameSignature(a, b service.CommandSpec) bool {
	return a.Description == b.Description &&
		a.Category == b.Category &&
		reflect.DeepEqual(a.ArgSchema, b.ArgSchema)
}

// Execute dispatches argv[0] to its handler. An empty argv or unknown
// command name is never an error — it is a failed CommandResult.
func (r *Registry) Execute(ctx context.Context, argv []string) (*service.CommandResult, error) {
	if len(argv) == 0 {
		return &service.CommandResult{Success: false, Message: "unknown command"}, nil
	}

	r.mu.RLock()
	spec, ok := r.commands[argv[0]]
	r.mu.RUnlock()
	if !ok {
		return &service.CommandResult{Success: false, Message: "unknown command"}, nil
	}

	return spec.Handler(ctx, argv[1:])
}

// List returns every registered command's spec.
func (r *Registry) List() []service.CommandSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]service.CommandSpec, 0, len(r.commands))
	for _, spec := range r.commands {
		specs = append(specs, spec)
	}
	return specs
}

// Get returns a single command's spec.
func (r *Registry) Get(name string) (service.CommandSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.commands[name]
	return spec, ok
}
