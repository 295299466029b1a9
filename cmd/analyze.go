package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sambabib/depcheck/pkg/metrics"
)

var (
	analyzePath string
	ignoreFlags []string
)

// analyzeCmd represents the analyze subcommand
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze project dependencies",
	Long: `Analyze the project's dependencies once and report confirmed vulnerabilities,
outdated packages and a 0-100 health score.

Supported manifests: package.json, requirements.txt, go.mod, Gemfile.lock,
pom.xml and *.csproj. A directory is searched for all of them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(analyzePath)
		if err != nil {
			return err
		}
		cfg.IgnorePackages = append(cfg.IgnorePackages, ignoreFlags...)

		eng := newEngine(cfg, metrics.New())
		_, err = runAnalysis(cmd.Context(), eng, cfg, analyzePath, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzePath, "path", "p", ".", "Path to project directory or manifest file to analyze")
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json or sarif")
	analyzeCmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	analyzeCmd.Flags().Int("concurrency", 0, "Dependencies analyzed at once (default from config)")
	analyzeCmd.Flags().String("fail-on", "", "Exit non-zero if a vulnerability at or above this severity is found")
	analyzeCmd.Flags().StringSliceVar(&ignoreFlags, "ignore", nil, "Package names to skip (repeatable)")
}
