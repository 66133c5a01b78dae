// Package main provides the research-team CLI entrypoint.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/research-team/config"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Command output goes to stdout, logs
// and events to stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "research-team",
		Short: "Multi-agent research report generator",
		Long: `research-team runs a fixed four-stage team over a topic:

  research  Researcher gathers sources and synthesizes findings
  analysis  Analyst extracts insights, trends and recommendations
  content   Writer produces the report
  quality   Reviewer scores the result

Settings come from research-team.yaml (in . or ./config) and the
environment. Set AI_PROVIDER=mock to run without a model API key.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file")

	load := func() (*config.Config, error) {
		return config.Load(configFile)
	}

	rootCmd.AddCommand(
		runCmd(load),
		serveCmd(load),
		capabilitiesCmd(load),
		statusCmd(load),
		configCmd(load),
	)
	return rootCmd
}

type loader func() (*config.Config, error)
