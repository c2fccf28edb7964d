// Package dispatcher is the command invoker (spec §4.11): validates
// preconditions, runs a command, wraps its outcome in a uniform result
// envelope, and records it into a bounded history. Grounded on the
// teacher's handler-wrapping idiom in cmd/plex-tuner (each HTTP handler
// validated, executed, and logged through a single chokepoint), adapted
// here from HTTP handlers to in-process UI commands keyed by UUID.
package dispatcher

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Result is the uniform outcome every dispatched command produces.
type Result struct {
	Success        bool
	Message        string
	NeedsRefresh   bool
	ShouldContinue bool
}

// Command is anything the dispatcher can invoke.
type Command interface {
	// Name identifies the command for history display.
	Name() string
	// CanExecute reports whether preconditions are currently satisfied.
	CanExecute(ctx context.Context) bool
	// Execute runs the command and returns its result.
	Execute(ctx context.Context) Result
}

// Undoable is implemented by commands that support being reversed. No
// concrete command currently implements it; the dispatcher's undo stack
// is part of the contract for future use (spec §4.11).
type Undoable interface {
	Command
	Undo(ctx context.Context) Result
}

// HistoryEntry is one recorded invocation.
type HistoryEntry struct {
	ID     string
	Name   string
	Result Result
}

const historyCap = 50

// Dispatcher wraps command execution with precondition checks and a
// bounded FIFO history.
type Dispatcher struct {
	mu      sync.Mutex
	history []HistoryEntry
	undoes  []Undoable
}

func New() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch validates preconditions, runs cmd, records the outcome, and
// returns the result.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Result {
	if !cmd.CanExecute(ctx) {
		result := Result{Success: false, Message: "preconditions not met for " + cmd.Name(), ShouldContinue: true}
		d.record(cmd.Name(), result)
		return result
	}

	result := cmd.Execute(ctx)
	d.record(cmd.Name(), result)

	if u, ok := cmd.(Undoable); ok {
		d.mu.Lock()
		d.undoes = append(d.undoes, u)
		d.mu.Unlock()
	}
	return result
}

func (d *Dispatcher) record(name string, result Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := HistoryEntry{ID: uuid.NewString(), Name: name, Result: result}
	d.history = append(d.history, entry)
	if len(d.history) > historyCap {
		d.history = d.history[len(d.history)-historyCap:]
	}
}

// History returns a snapshot of recorded invocations, oldest first.
func (d *Dispatcher) History() []HistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]HistoryEntry, len(d.history))
	copy(out, d.history)
	return out
}

// UndoLast pops and reverses the most recently recorded undoable command,
// if any.
func (d *Dispatcher) UndoLast(ctx context.Context) (Result, bool) {
	d.mu.Lock()
	if len(d.undoes) == 0 {
		d.mu.Unlock()
		return Result{}, false
	}
	last := d.undoes[len(d.undoes)-1]
	d.undoes = d.undoes[:len(d.undoes)-1]
	d.mu.Unlock()

	result := last.Undo(ctx)
	d.record("undo:"+last.Name(), result)
	return result, true
}
