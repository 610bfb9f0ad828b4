package entity

import (
	"fmt"
	"sync"
	"time"
)

// TopState is the top level of the hierarchical UI state machine.
type TopState string

const (
	TopBusy  TopState = "busy"
	TopReady TopState = "ready"
)

// SubState is the ready sub-state; meaningless while TopState is busy.
type SubState string

const (
	SubPlanning SubState = "planning"
	SubEditing  SubState = "editing"
	SubGeneric  SubState = "generic"
)

// AppEvent is the closed set of UI transition triggers.
type AppEvent string

const (
	EventStartTask       AppEvent = "START_TASK"
	EventTaskComplete    AppEvent = "TASK_COMPLETE"
	EventTaskError       AppEvent = "TASK_ERROR"
	EventCycleSubstate   AppEvent = "CYCLE_SUBSTATE"
)

// AppStateSnapshot is a value copy of the UI state machine's fields at a
// point in time.
type AppStateSnapshot struct {
	Top       TopState
	Sub       SubState
	TaskName  string
	StartedAt time.Time
}

// AppState is the hierarchical UI state machine: top-level busy/ready, and
// a ready sub-state that cycles planning -> editing -> generic. Busy
// implies exactly one in-flight request. The orchestrator owns the
// transitions this triggers on handler entry/exit; the CLI driver owns
// cycling the sub-state on key input.
type AppState struct {
	mu        sync.RWMutex
	top       TopState
	sub       SubState
	taskName  string
	startedAt time.Time
	listeners []func(from, to AppStateSnapshot)
}

// NewAppState starts in ready.generic, the default state before any
// request has been classified.
func NewAppState() *AppState {
	return &AppState{
		top: TopReady,
		sub: SubGeneric,
	}
}

// Snapshot returns the current state.
func (a *AppState) Snapshot() AppStateSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AppStateSnapshot{Top: a.top, Sub: a.sub, TaskName: a.taskName, StartedAt: a.startedAt}
}

// OnTransition registers a listener invoked, outside the lock, after every
// successful transition.
func (a *AppState) OnTransition(fn func(from, to AppStateSnapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Apply fires the given event. taskName is only consulted for
// START_TASK. Returns an error if the event is not legal from the current
// state, per the transition table in the data model.
func (a *AppState) Apply(event AppEvent, taskName string) error {
	a.mu.Lock()
	from := a.snapshotLocked()

	var to AppStateSnapshot
	switch event {
	case EventStartTask:
		if a.top != TopReady {
			a.mu.Unlock()
			return fmt.Errorf("invalid UI transition: %s from %s.%s", event, a.top, a.sub)
		}
		a.top = TopBusy
		a.taskName = taskName
		a.startedAt = time.Now()
		to = a.snapshotLocked()

	case EventTaskComplete, EventTaskError:
		if a.top != TopBusy {
			a.mu.Unlock()
			return fmt.Errorf("invalid UI transition: %s from %s", event, a.top)
		}
		a.top = TopReady
		a.sub = SubGeneric
		a.taskName = ""
		to = a.snapshotLocked()

	case EventCycleSubstate:
		if a.top != TopReady {
			a.mu.Unlock()
			return nil // no-op in busy, per spec — not an error
		}
		a.sub = nextSubState(a.sub)
		to = a.snapshotLocked()

	default:
		a.mu.Unlock()
		return fmt.Errorf("unknown UI event: %s", event)
	}

	listeners := make([]func(from, to AppStateSnapshot), len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return nil
}

// snapshotLocked must only be called while holding a.mu.
func (a *AppState) snapshotLocked() AppStateSnapshot {
	return AppStateSnapshot{Top: a.top, Sub: a.sub, TaskName: a.taskName, StartedAt: a.startedAt}
}

func nextSubState(s SubState) SubState {
	switch s {
	case SubPlanning:
		return SubEditing
	case SubEditing:
		return SubGeneric
	default:
		return SubPlanning
	}
}

// IsBusy reports whether the machine is currently busy.
func (a *AppState) IsBusy() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.top == TopBusy
}
