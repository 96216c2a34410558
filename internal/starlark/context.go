package starlark

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ConfigGlobal is the name the configuration mapping is bound to.
const ConfigGlobal = "config"

// ErrContextUsed is returned when an ExecutionContext is executed twice.
var ErrContextUsed = errors.New("execution context already used")

// fileOptions is the dialect accepted for configuration files.
// Configuration files are plain scripts, so top-level control flow and
// rebinding globals (config = {...} after config["x"] = ...) are allowed.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// ExecutionContext holds the predeclared globals for a single script execution.
// A context is single use: every script gets its own empty config mapping.
type ExecutionContext struct {
	// Config is the mapping seeded as the "config" global.
	// Scripts may mutate it or rebind the name entirely.
	Config *starlark.Dict

	// MaxSteps bounds the number of Starlark execution steps (0 = unlimited).
	MaxSteps uint64

	// MaxPrintLines bounds how many print() lines are kept for diagnostics.
	MaxPrintLines int

	predeclared starlark.StringDict

	mu   sync.Mutex
	used bool
}

// NewExecutionContext creates a context with a fresh, empty config mapping.
func NewExecutionContext(opts ...ContextOption) *ExecutionContext {
	ec := &ExecutionContext{
		Config:        starlark.NewDict(0),
		MaxPrintLines: defaultMaxPrintLines,
	}
	for _, opt := range opts {
		opt(ec)
	}
	ec.predeclared = Predeclared(ec.Config)
	return ec
}

// Globals returns the predeclared globals visible to the script.
func (ec *ExecutionContext) Globals() starlark.StringDict {
	return ec.predeclared
}

// Exec runs src as a Starlark file named filename.
// The context's deadline, if any, cancels the running thread. On failure the
// returned Execution is still non-nil so captured output can be inspected.
func (ec *ExecutionContext) Exec(ctx context.Context, filename string, src []byte) (*Execution, error) {
	ec.mu.Lock()
	if ec.used {
		ec.mu.Unlock()
		return nil, ErrContextUsed
	}
	ec.used = true
	ec.mu.Unlock()

	exec := &Execution{config: ec.Config}
	out := &printBuffer{max: ec.MaxPrintLines}
	exec.output = out

	if err := ctx.Err(); err != nil {
		return exec, &ExecError{File: filename, Message: err.Error(), cause: err}
	}

	thread := newThread(filename, out, ec.MaxSteps)
	stop := cancelOnDone(ctx, thread)
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, ec.predeclared)
	exec.globals = globals
	exec.steps = thread.ExecutionSteps()
	if err != nil {
		return exec, newExecError(filename, err)
	}
	return exec, nil
}

// Execution is the outcome of running one script.
type Execution struct {
	globals starlark.StringDict
	config  *starlark.Dict
	output  *printBuffer
	steps   uint64
}

// Config returns the value bound to "config" once the script finished.
// A module-level binding takes precedence over the predeclared mapping.
func (e *Execution) Config() starlark.Value {
	if v, ok := e.globals[ConfigGlobal]; ok {
		return v
	}
	return e.config
}

// Printed returns the lines the script wrote with print().
func (e *Execution) Printed() []string {
	return e.output.lines
}

// Dropped reports how many print() lines exceeded the capture limit.
func (e *Execution) Dropped() int {
	return e.output.dropped
}

// Steps returns the number of Starlark steps the script took.
func (e *Execution) Steps() uint64 {
	return e.steps
}

// ExecError represents a failure to parse or run a script.
type ExecError struct {
	File      string
	Message   string
	Backtrace string
	cause     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *ExecError) Unwrap() error {
	return e.cause
}

func newExecError(file string, err error) *ExecError {
	execErr := &ExecError{File: file, Message: err.Error(), cause: err}

	var evalErr *starlark.EvalError
	var syntaxErr syntax.Error
	switch {
	case errors.As(err, &evalErr):
		execErr.Message = evalErr.Msg
		execErr.Backtrace = evalErr.Backtrace()
	case errors.As(err, &syntaxErr):
		execErr.Message = fmt.Sprintf("%d:%d: %s", syntaxErr.Pos.Line, syntaxErr.Pos.Col, syntaxErr.Msg)
	}
	return execErr
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithMaxSteps bounds the number of execution steps.
func WithMaxSteps(n uint64) ContextOption {
	return func(ec *ExecutionContext) {
		ec.MaxSteps = n
	}
}

// WithMaxPrintLines bounds how many print() lines are retained.
func WithMaxPrintLines(n int) ContextOption {
	return func(ec *ExecutionContext) {
		ec.MaxPrintLines = n
	}
}
