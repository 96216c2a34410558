package starlark

import (
	"context"

	"go.starlark.net/starlark"
)

const defaultMaxPrintLines = 100

// printBuffer captures print() output of one execution.
// It is owned by a single Execution and never forwarded to stdout.
type printBuffer struct {
	lines   []string
	dropped int
	max     int
}

func (b *printBuffer) print(_ *starlark.Thread, msg string) {
	if b.max > 0 && len(b.lines) >= b.max {
		b.dropped++
		return
	}
	b.lines = append(b.lines, msg)
}

// newThread creates a Starlark thread for a single script execution.
// Threads are never reused, so nothing leaks between executions.
func newThread(name string, out *printBuffer, maxSteps uint64) *starlark.Thread {
	thread := &starlark.Thread{
		Name:  name,
		Print: out.print,
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, &loadDisabledError{module: module}
		},
	}
	if maxSteps > 0 {
		thread.SetMaxExecutionSteps(maxSteps)
	}
	return thread
}

// cancelOnDone cancels thread when ctx is done.
// The returned func releases the watcher and must be called once the
// thread has finished.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	return func() { stop() }
}

type loadDisabledError struct {
	module string
}

func (e *loadDisabledError) Error() string {
	return "load(" + e.module + ") is not supported in configuration files"
}
