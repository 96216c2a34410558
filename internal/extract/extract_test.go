package extract

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/checkkey/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantValue   string
		wantOutcome Outcome
	}{
		{
			name:        "well-formed config",
			content:     `config = {"des_key": "abc123"}`,
			wantValue:   "abc123",
			wantOutcome: OutcomeFound,
		},
		{
			name:        "item assignment on predeclared config",
			content:     `config["des_key"] = 'single-quoted'`,
			wantValue:   "single-quoted",
			wantOutcome: OutcomeFound,
		},
		{
			name: "other keys alongside",
			content: `
config = {
    "db_host": "localhost",
    "db_port": 5432,
    "des_key": "k3y",
}
`,
			wantValue:   "k3y",
			wantOutcome: OutcomeFound,
		},
		{
			name:        "value with whitespace is kept verbatim",
			content:     `config = {"des_key": "  padded\tvalue "}`,
			wantValue:   "  padded\tvalue ",
			wantOutcome: OutcomeFound,
		},
		{
			name:        "key missing",
			content:     `config = {"other": "x"}`,
			wantOutcome: OutcomeKeyMissing,
		},
		{
			name:        "config never assigned",
			content:     `x = 1`,
			wantOutcome: OutcomeKeyMissing,
		},
		{
			name:        "empty file",
			content:     ``,
			wantOutcome: OutcomeKeyMissing,
		},
		{
			name:        "integer value",
			content:     `config = {"des_key": 42}`,
			wantOutcome: OutcomeKeyNotString,
		},
		{
			name:        "nested value",
			content:     `config = {"des_key": {"inner": "abc"}}`,
			wantOutcome: OutcomeKeyNotString,
		},
		{
			name:        "none value",
			content:     `config = {"des_key": None}`,
			wantOutcome: OutcomeKeyNotString,
		},
		{
			name:        "bytes value",
			content:     `config = {"des_key": b"abc"}`,
			wantOutcome: OutcomeKeyNotString,
		},
		{
			name:        "empty string",
			content:     `config = {"des_key": ""}`,
			wantOutcome: OutcomeKeyEmpty,
		},
		{
			name:        "config rebound to a list",
			content:     `config = ["des_key"]`,
			wantOutcome: OutcomeNoMapping,
		},
		{
			name:        "syntax error",
			content:     `config = {"des_key": "abc"`,
			wantOutcome: OutcomeExecFailed,
		},
		{
			name: "runtime error after assignment",
			content: `
config = {"des_key": "abc"}
fail("broken")
`,
			wantOutcome: OutcomeExecFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteConfigFile(t, "config.star", tt.content)
			e := New(WithLogger(testutil.NewTestLogger(t)))

			got := e.Extract(context.Background(), path)

			assert.Equal(t, tt.wantOutcome, got.Outcome, "outcome")
			assert.Equal(t, tt.wantValue, got.Value, "value")
			assert.Equal(t, tt.wantOutcome == OutcomeFound, got.Found())
		})
	}
}

func TestExtractor_Unreadable(t *testing.T) {
	e := New()

	t.Run("missing file", func(t *testing.T) {
		got := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.star"))
		assert.Equal(t, OutcomeUnreadable, got.Outcome)
		assert.Empty(t, got.Value)
		assert.Error(t, got.Err)
	})

	t.Run("directory", func(t *testing.T) {
		got := e.Extract(context.Background(), t.TempDir())
		assert.Equal(t, OutcomeUnreadable, got.Outcome)
		assert.Empty(t, got.Value)
	})

	t.Run("no read permission", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root can read files regardless of mode")
		}
		path := testutil.WriteConfigFile(t, "secret.star", `config = {"des_key": "abc"}`)
		require.NoError(t, os.Chmod(path, 0o000))

		got := e.Extract(context.Background(), path)
		assert.Equal(t, OutcomeUnreadable, got.Outcome)
		assert.Empty(t, got.Value)
	})
}

func TestExtractor_ExecFailureIsLogged(t *testing.T) {
	logger, logs := testutil.NewBufferLogger()
	path := testutil.WriteConfigFile(t, "bad.star", `config = {`)

	got := New(WithLogger(logger)).Extract(context.Background(), path)

	assert.Equal(t, OutcomeExecFailed, got.Outcome)
	require.Error(t, got.Err)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "could not execute config file")
	assert.Contains(t, logs.String(), path)
}

func TestExtractor_PrintedOutputDiscarded(t *testing.T) {
	logger, logs := testutil.NewBufferLogger()
	path := testutil.WriteConfigFile(t, "noisy.star", `
print("stray output")
config = {"des_key": "abc123"}
`)

	got := New(WithLogger(logger)).Extract(context.Background(), path)

	assert.Equal(t, "abc123", got.Value)
	assert.Contains(t, logs.String(), "discarded config file output")
	assert.Contains(t, logs.String(), "stray output")
}

func TestExtractor_Limits(t *testing.T) {
	loop := `
config = {"des_key": "never"}
while True:
    pass
`

	t.Run("timeout", func(t *testing.T) {
		path := testutil.WriteConfigFile(t, "loop.star", loop)
		e := New(WithTimeout(50 * time.Millisecond))

		got := e.Extract(context.Background(), path)
		assert.Equal(t, OutcomeExecFailed, got.Outcome)
		assert.Empty(t, got.Value)
	})

	t.Run("max steps", func(t *testing.T) {
		path := testutil.WriteConfigFile(t, "loop.star", loop)
		e := New(WithMaxSteps(10_000))

		got := e.Extract(context.Background(), path)
		assert.Equal(t, OutcomeExecFailed, got.Outcome)
		assert.Contains(t, got.Err.Error(), "too many steps")
	})
}

func TestExtractor_Idempotent(t *testing.T) {
	path := testutil.WriteConfigFile(t, "config.star", `
config["count"] = config.get("count", 0) + 1
config["des_key"] = "abc123-" + str(config["count"])
`)
	e := New()

	first := e.Extract(context.Background(), path)
	for i := 0; i < 5; i++ {
		got := e.Extract(context.Background(), path)
		assert.Equal(t, first, got, "run %d", i)
	}
	assert.Equal(t, "abc123-1", first.Value)
}

func TestExtractor_Concurrent(t *testing.T) {
	path := testutil.WriteConfigFile(t, "config.star", `config = {"des_key": "abc123"}`)
	e := New()

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = e.Extract(context.Background(), path)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, "abc123", r.Value, "result %d", i)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "found", OutcomeFound.String())
	assert.Equal(t, "exec_failed", OutcomeExecFailed.String())
	assert.Equal(t, "key_not_string", OutcomeKeyNotString.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
