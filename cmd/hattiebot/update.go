package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hattiebot/hattiebot/internal/config"
	"github.com/hattiebot/hattiebot/internal/selfupdate"
)

// newUpdateCmd implements spec.md §6 `update [--check|--yes|--rollback]`:
// git+go-build for a git checkout, tarball+SHA-256 verify for a prebuilt
// install, and an outright refusal under Docker (redeploy the image
// instead).
func newUpdateCmd(configDir *string) *cobra.Command {
	var (
		checkOnly  bool
		yes        bool
		rollback   bool
		tarballURL string
		sha256Sum  string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New(*configDir)
			mode := selfupdate.DetectInstallMode()

			if rollback {
				exe, err := os.Executable()
				if err != nil {
					return err
				}
				if err := selfupdate.Rollback(cmd.Context(), mode, cfg.WorkspaceDir, exe); err != nil {
					return err
				}
				fmt.Println("Rolled back to the previous version.")
				return nil
			}

			if cfg.UpdateReleasesURL == "" {
				return fmt.Errorf("no update release feed configured (set HATTIEBOT_UPDATE_RELEASES_URL)")
			}
			checker := &selfupdate.Checker{ConfigDir: cfg.ConfigDir, CurrentVersion: buildVersion, ReleasesAPIURL: cfg.UpdateReleasesURL}
			st, err := checker.Check(cmd.Context())
			if err != nil {
				return err
			}
			if !st.UpdateAvailable {
				fmt.Printf("Already up to date (%s).\n", st.CurrentVersion)
				return nil
			}
			fmt.Printf("Update available: %s -> %s\n", st.CurrentVersion, st.LatestVersion)
			if checkOnly {
				return nil
			}
			if !yes {
				fmt.Print("Apply update? [y/N] ")
				var resp string
				fmt.Scanln(&resp)
				if resp != "y" && resp != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			switch mode {
			case selfupdate.ModeGit:
				if err := selfupdate.Apply(cmd.Context(), mode, cfg.WorkspaceDir); err != nil {
					return err
				}
			case selfupdate.ModeTarball:
				if tarballURL == "" || sha256Sum == "" {
					return fmt.Errorf("tarball installs require --tarball-url and --sha256")
				}
				exe, err := os.Executable()
				if err != nil {
					return err
				}
				if err := selfupdate.ApplyTarball(cmd.Context(), tarballURL, sha256Sum, exe); err != nil {
					return err
				}
			case selfupdate.ModeDocker:
				return fmt.Errorf("running in Docker: pull a new image tag and redeploy instead of self-updating")
			default:
				return fmt.Errorf("unrecognized install mode %q", mode)
			}
			fmt.Println("Update applied. Restart to take effect.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "only check for an update, don't apply it")
	cmd.Flags().BoolVar(&yes, "yes", false, "apply without an interactive confirmation")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "revert the previous update")
	cmd.Flags().StringVar(&tarballURL, "tarball-url", "", "release tarball URL (tarball install mode)")
	cmd.Flags().StringVar(&sha256Sum, "sha256", "", "expected SHA-256 of the tarball (tarball install mode)")
	return cmd
}
