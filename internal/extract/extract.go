// Package extract reads the des_key value out of an executable configuration
// file.
//
// A configuration file is a Starlark script that assigns a mapping to the
// global "config". Every failure to produce a value, whether the file is
// missing, broken, or simply lacks the key, collapses into a Result that is
// not Found; the Outcome records which case applied for diagnostics.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	starctx "github.com/leapstack-labs/checkkey/internal/starlark"
	"go.starlark.net/starlark"
)

// Key is the configuration key that is extracted.
const Key = "des_key"

// Outcome classifies how an extraction ended.
type Outcome int

// Extraction outcomes. Only OutcomeFound carries a value.
const (
	OutcomeFound Outcome = iota
	OutcomeUnreadable
	OutcomeExecFailed
	OutcomeNoMapping
	OutcomeKeyMissing
	OutcomeKeyNotString
	OutcomeKeyEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeUnreadable:
		return "unreadable"
	case OutcomeExecFailed:
		return "exec_failed"
	case OutcomeNoMapping:
		return "no_mapping"
	case OutcomeKeyMissing:
		return "key_missing"
	case OutcomeKeyNotString:
		return "key_not_string"
	case OutcomeKeyEmpty:
		return "key_empty"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single extraction.
type Result struct {
	// Value is the extracted string. Non-empty only when Outcome is OutcomeFound.
	Value   string
	Outcome Outcome
	// Err is the underlying cause for OutcomeUnreadable and OutcomeExecFailed.
	Err error
}

// Found reports whether a non-empty string value was extracted.
func (r Result) Found() bool {
	return r.Outcome == OutcomeFound
}

// Extractor runs configuration files and extracts Key from them.
// It holds no per-file state; an Extractor may be used concurrently.
type Extractor struct {
	logger   *slog.Logger
	timeout  time.Duration
	maxSteps uint64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout bounds the time a configuration script may run (0 = no limit).
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// WithMaxSteps bounds the Starlark steps a configuration script may take
// (0 = no limit).
func WithMaxSteps(n uint64) Option {
	return func(e *Extractor) {
		e.maxSteps = n
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract executes the file at path and returns the value of Key.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	logger := e.logger.With("path", path)

	src, err := os.ReadFile(path) //nolint:gosec // G304: reading the caller-supplied config file is the point
	if err != nil {
		logger.Debug("config file not readable", "error", err)
		return Result{Outcome: OutcomeUnreadable, Err: err}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ec := starctx.NewExecutionContext(starctx.WithMaxSteps(e.maxSteps))
	exec, err := ec.Exec(ctx, path, src)
	if exec != nil {
		logPrinted(logger, exec)
	}
	if err != nil {
		var execErr *starctx.ExecError
		if errors.As(err, &execErr) && execErr.Backtrace != "" {
			logger.Debug("config file backtrace", "backtrace", execErr.Backtrace)
		}
		logger.Warn("could not execute config file", "error", err)
		return Result{Outcome: OutcomeExecFailed, Err: err}
	}
	logger.Debug("config file executed", "steps", exec.Steps())

	return e.lookup(logger, exec.Config())
}

func (e *Extractor) lookup(logger *slog.Logger, config starlark.Value) Result {
	v, found, err := starctx.Lookup(config, Key)
	if err != nil {
		logger.Debug("config is not a mapping", "error", err)
		return Result{Outcome: OutcomeNoMapping}
	}
	if !found {
		logger.Debug("key not set", "key", Key)
		return Result{Outcome: OutcomeKeyMissing}
	}

	s, ok := starctx.AsString(v)
	if !ok {
		logger.Debug("key is not a string", "key", Key, "type", starctx.TypeName(v))
		return Result{Outcome: OutcomeKeyNotString}
	}
	if s == "" {
		logger.Debug("key is empty", "key", Key)
		return Result{Outcome: OutcomeKeyEmpty}
	}
	return Result{Value: s, Outcome: OutcomeFound}
}

func logPrinted(logger *slog.Logger, exec *starctx.Execution) {
	printed := exec.Printed()
	if len(printed) == 0 {
		return
	}
	logger.Debug("discarded config file output",
		"lines", len(printed),
		"dropped", exec.Dropped(),
		"output", printed,
	)
}
