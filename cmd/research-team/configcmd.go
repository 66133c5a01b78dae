package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/research-team/render"
)

func configCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(configValidateCmd(load))
	return cmd
}

func configValidateCmd(load loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report every problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			issues := cfg.Validate()
			if err := render.New(cmd.OutOrStdout(), out).Issues(issues); err != nil {
				return err
			}
			if len(issues) > 0 {
				return fmt.Errorf("configuration has %d issue(s)", len(issues))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	return cmd
}
