// Package cli provides the command-line interface for check-key.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/leapstack-labs/checkkey/internal/cli/config"
	"github.com/leapstack-labs/checkkey/internal/extract"
	"github.com/spf13/cobra"
)

// ProgramName is the name used in usage messages.
const ProgramName = "check-key"

// Exit codes.
const (
	ExitOK    = 0
	ExitUsage = 1
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// UsageError reports a wrong invocation: missing path or bad flags.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason == "" {
		return "missing config file path"
	}
	return e.Reason
}

// Run executes check-key with args (without the program name) and returns
// the process exit code.
//
// stdout receives only the extracted value; every diagnostic, including help
// text, goes to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		if usageErr.Reason != "" {
			_, _ = fmt.Fprintf(stderr, "Error: %s\n", usageErr.Reason)
		}
		_, _ = fmt.Fprintf(stderr, "Usage: %s <config_file_path>\n", ProgramName)
		return ExitUsage
	}

	// Content-level failures never reach here; anything else is still
	// reported but keeps the empty-output contract.
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitOK
}

// NewRootCmd creates the root command writing the value to stdout and all
// diagnostics to stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var settingsFile string

	rootCmd := &cobra.Command{
		Use:   ProgramName + " <config_file_path>",
		Short: "Print the des_key value from a configuration script",
		Long: `check-key executes a Starlark configuration script and prints the value of
config["des_key"] to standard output.

The script is run in a sandbox with an empty dict bound to "config". It may
either assign a new mapping (config = {"des_key": "..."}) or set keys on the
existing one (config["des_key"] = "..."). Anything the script prints is
discarded.

Output is empty whenever no usable value exists: the file is missing or
unreadable, the script fails, or des_key is absent, not a string, or empty.
The exit status is 0 in all of those cases and 1 only when no path is given.`,
		Example: `  # Read the key
  check-key /etc/myapp/config.star

  # Branch on empty output in a shell script
  key="$(check-key ./config.star)"
  [ -n "$key" ] || echo "no des_key configured" >&2

  # Debug why nothing is printed
  check-key -v ./config.star`,
		Version: Version,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return &UsageError{}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, used, loadErr := config.Load(settingsFile, cmd.Flags())
			if loadErr != nil {
				settings = config.Defaults()
			}

			logger := NewLogger(stderr, settings)
			if loadErr != nil {
				logger.Warn("ignoring settings, using defaults", "error", loadErr)
			} else if used != "" {
				logger.Debug("using settings file", "path", used)
			}
			if len(args) > 1 {
				logger.Debug("ignoring extra arguments", "args", args[1:])
			}

			ctx := config.WithLogger(cmd.Context(), logger)
			return runExtract(ctx, args[0], settings, stdout)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	flags := rootCmd.Flags()
	flags.StringVar(&settingsFile, "settings", "", "settings file (default: <user config dir>/check-key/settings.yaml)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (auto|text|json)")
	flags.Duration("timeout", 0, "Maximum time the configuration script may run (0 disables)")
	flags.Uint64("max-steps", 0, "Maximum Starlark execution steps (0 disables)")
	flags.BoolP("verbose", "v", false, "Verbose diagnostics on stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.FormatAuto, config.FormatText, config.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// runExtract extracts the key from path and prints it, or prints nothing.
func runExtract(ctx context.Context, path string, settings *config.Settings, stdout io.Writer) error {
	logger := config.GetLogger(ctx)

	e := extract.New(
		extract.WithLogger(logger),
		extract.WithTimeout(settings.Timeout),
		extract.WithMaxSteps(settings.MaxSteps),
	)

	result := e.Extract(ctx, path)
	logger.Debug("extraction finished", "outcome", result.Outcome.String())
	if !result.Found() {
		return nil
	}

	if _, err := fmt.Fprint(stdout, result.Value); err != nil {
		return fmt.Errorf("failed to write value: %w", err)
	}
	return nil
}
