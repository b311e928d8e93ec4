package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hattiebot/hattiebot/internal/config"
	"github.com/hattiebot/hattiebot/internal/selfupdate"
	"github.com/hattiebot/hattiebot/internal/wireproto"
)

// newVersionCmd prints version, commit, install mode, wire protocol
// version, and the resolved data directory (spec.md §6 `version`).
func newVersionCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and environment details",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New(*configDir)
			fmt.Printf("hattiebot %s (%s)\n", buildVersion, buildCommit)
			fmt.Printf("install mode: %s\n", selfupdate.DetectInstallMode())
			fmt.Printf("protocol:     %d\n", wireproto.ProtocolVersion)
			fmt.Printf("data dir:     %s\n", cfg.ConfigDir)
			return nil
		},
	}
}
