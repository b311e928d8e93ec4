package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hattiebot/hattiebot/internal/config"
	"github.com/hattiebot/hattiebot/internal/mcpbridge"
	"github.com/hattiebot/hattiebot/internal/store"
)

// newMCPBridgeCmd implements spec.md §6 `mcp-bridge`: the core's knowledge
// and memory tools exposed as an MCP server over stdio, for an IDE or
// another agent process to call directly without going through a chat turn.
func newMCPBridgeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-bridge",
		Short: "Serve knowledge and memory tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Fprintln(os.Stderr, "mcp-bridge speaks JSON-RPC over stdio; it's meant to be launched by an MCP client, not a terminal.")
			}

			cfg := config.New(*configDir)
			db, err := store.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return wrapConfigErr(fmt.Errorf("open db: %w", err))
			}
			defer db.Close()

			server := mcpbridge.New(db)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return server.ServeStdio(ctx, os.Stdin, os.Stdout)
		},
	}
}
