// HattieBot is a self-improving agent seed: OpenRouter, SQLite + sqlite-vec,
// minimal built-in tools, and instructions for the agent to create Go tools.
// The process stays running as the "brain"; the console is one interface.
// In the future, Twilio/Slack or proactive loops can attach without stopping it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildVersion and buildCommit are injected at build time via
// -ldflags "-X main.buildVersion=... -X main.buildCommit=...". Left at
// their defaults for `go run`/local builds.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// newRootCmd builds the CLI surface (spec.md §6): running with no
// subcommand starts the server (the historical default behavior); version,
// update, and mcp-bridge are explicit subcommands.
func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:           "hattiebot",
		Short:         "HattieBot - a self-improving agent",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configDir)
		},
	}
	root.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "config directory (default: .hattiebot or ~/.config/hattiebot)")

	root.AddCommand(
		newVersionCmd(&configDir),
		newUpdateCmd(&configDir),
		newMCPBridgeCmd(&configDir),
	)
	return root
}

// configError marks a failure as spec.md §7's Fatal/"configuration error"
// taxonomy (missing required config keys, DB open failure) rather than a
// generic runtime failure, so main() can map it to exit code 2 instead of 1.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func wrapConfigErr(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

// exitCodeFor maps a returned error to spec.md §6's process exit codes:
// 0 success (never reaches here), 1 unrecoverable, 2 configuration error.
func exitCodeFor(err error) int {
	var ce *configError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}
