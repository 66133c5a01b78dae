package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/research-team/render"
	"github.com/dshills/research-team/workflow"
)

func runCmd(load loader) *cobra.Command {
	var (
		depth      string
		reportType string
		audience   string
		focus      []string
		threshold  float64
		format     string
	)

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Run the research team on a topic and print the report",
		Long: `Run the four-stage team on a topic in the foreground.

Examples:
  research-team run "AI in healthcare"
  research-team run "Solid-state batteries" --depth deep --type analysis
  research-team run "Remote work" --focus productivity --focus hiring --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			opts := workflow.RunOptions{
				Depth:      workflow.Depth(depth),
				ReportType: workflow.ReportType(reportType),
				Audience:   audience,
				FocusAreas: focus,
			}
			if cmd.Flags().Changed("threshold") {
				opts.QualityThreshold = workflow.Threshold(threshold)
			}

			rec, err := a.engine.Run(ctx, workflow.Request{
				Topic:   strings.Join(args, " "),
				Options: opts,
			})
			if err != nil {
				return err
			}

			report, err := a.engine.Result(ctx, rec.WorkflowID)
			if err != nil {
				return err
			}
			if err := render.New(cmd.OutOrStdout(), out).Report(report); err != nil {
				return err
			}

			if rec.Status == workflow.StatusFailed && rec.Error != nil {
				return fmt.Errorf("workflow %s failed at %s: %s", rec.WorkflowID, rec.Error.Stage, rec.Error.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&depth, "depth", "", "Research depth: basic, medium, deep (default medium)")
	cmd.Flags().StringVarP(&reportType, "type", "t", "", "Report type: summary, comprehensive_report, analysis, executive_brief, research_summary")
	cmd.Flags().StringVar(&audience, "audience", "", "Target audience (default general)")
	cmd.Flags().StringSliceVar(&focus, "focus", nil, "Focus area (repeatable)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Approval threshold in [0,1] (default QUALITY_THRESHOLD)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")

	return cmd
}

func statusCmd(load loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show an archived run from the configured store",
		Long: `Show the last saved snapshot of a run. Only runs archived by a
persistent STORE_DRIVER (sqlite, mysql, postgres) can be found. A run whose
last snapshot is still in progress was interrupted by a stopped process and
is reported as failed with kind "orphaned".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			rec, err := a.engine.Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("workflow %s: %w", args[0], err)
			}
			return render.New(cmd.OutOrStdout(), out).Record(rec)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	return cmd
}
