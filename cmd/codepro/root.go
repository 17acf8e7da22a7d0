package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/maxritter/codepro/internal/version"
	"github.com/maxritter/codepro/pkg/logging"
)

var (
	verbosity      int
	nonInteractive bool
	skipEnv        bool
	localMode      bool
	localRepoDir   string

	rootCmd = &cobra.Command{
		Use:   "codepro",
		Short: "Idempotent installer for the Claude CodePro environment",
		Long: `codepro installs and updates the Claude CodePro environment in the
current project directory: managed configuration files, MCP server
manifests, rule configs, developer tools and environment variables.

Safe to run repeatedly: reruns converge to the same state and never
overwrite your custom rules, server entries or already-set secrets.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Run without interactive prompts")
	rootCmd.Flags().BoolVar(&skipEnv, "skip-env", false, "Skip interactive environment setup (API keys)")
	rootCmd.Flags().BoolVar(&localMode, "local", false, "Use a local repository mirror instead of downloading")
	rootCmd.Flags().StringVar(&localRepoDir, "local-repo-dir", "", "Local repository directory (defaults to the current directory with --local)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codepro version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}
