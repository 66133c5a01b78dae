package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/research-team/render"
	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/worker"
)

func capabilitiesCmd(load loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "capabilities",
		Aliases: []string{"caps"},
		Short:   "Describe the workers and their configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			// Describing workers never calls the model, so no provider
			// credentials are needed here.
			engine, err := workflow.New(
				worker.NewTeamFactory(worker.Deps{Generator: offlineGenerator()}, cfg.WorkerConfig()),
				workflow.WithDefaultOptions(cfg.RunDefaults()),
			)
			if err != nil {
				return err
			}
			return render.New(cmd.OutOrStdout(), out).Capabilities(engine.Capabilities())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	return cmd
}
