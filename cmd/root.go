package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sambabib/depcheck/pkg/config"
	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/output"
)

// Version is set during build using ldflags
var Version = "dev"

var (
	cfgFile string
	verbose bool
	logJSON bool

	// env is the overlay for DEPCHECK_* variables and changed flags.
	env = config.NewViper()
)

// flag name -> config key, bound for whichever command runs
var flagKeys = map[string]string{
	"format":      config.KeyOutputFormat,
	"output":      config.KeyOutputFile,
	"concurrency": config.KeyConcurrency,
	"fail-on":     config.KeyFailOn,
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "depcheck",
	Short: "Checks project dependencies for known vulnerabilities and staleness",
	Long: `Dependency Checker is a CLI tool that reads your project's manifests, queries
OSV and the GitHub Advisory Database for known vulnerabilities, confirms which
advisories actually affect the pinned versions, and reports outdated packages
together with an overall health score.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		logger.Configure(cmd.ErrOrStderr(), logJSON)
		logger.SetVerbose(verbose)
		output.ToolVersion = Version
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := env.BindPFlag(key, f); err != nil {
					return fmt.Errorf("binding --%s: %w", name, err)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: nearest .depcheck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON lines")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
