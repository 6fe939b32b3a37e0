package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"redline/internal/config"
	"redline/internal/jobs"
	"redline/internal/orchestrator"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job queue",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsHealthCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				var statuses []jobs.Status
				for _, raw := range statusFlags {
					status, ok := jobs.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}
				list, err := orc.Jobs().List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, job := range list {
					parent := ""
					if job.ParentID != nil {
						parent = strconv.FormatInt(*job.ParentID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						parent,
						string(job.TargetType),
						job.TargetID,
						string(job.Status),
						strconv.Itoa(job.Attempts),
						job.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				out := renderTable(
					[]string{"ID", "Parent", "Type", "Target", "Status", "Attempts", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					shouldColorize(cmd.OutOrStdout()),
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print one job with payload and result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				job, err := orc.Jobs().GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				view := map[string]any{
					"id":          job.ID,
					"parent_id":   job.ParentID,
					"target_type": job.TargetType,
					"target_id":   job.TargetID,
					"status":      job.Status,
					"attempts":    job.Attempts,
					"created_at":  job.CreatedAt.Format(time.RFC3339Nano),
					"updated_at":  job.UpdatedAt.Format(time.RFC3339Nano),
				}
				if job.ErrorMessage != "" {
					view["error"] = job.ErrorMessage
				}
				if job.PayloadJSON != "" {
					view["payload"] = json.RawMessage(job.PayloadJSON)
				}
				if job.ResultJSON != "" {
					view["result"] = json.RawMessage(job.ResultJSON)
				}
				if job.FanoutStatsJSON != "" {
					view["fanout_stats"] = json.RawMessage(job.FanoutStatsJSON)
				}
				encoded, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			})
		},
	}
}

func newJobsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Summarize queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				health, err := orc.Jobs().Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:        %d\n", health.Total)
				fmt.Fprintf(out, "Queued:       %d\n", health.Queued)
				fmt.Fprintf(out, "Started:      %d\n", health.Started)
				fmt.Fprintf(out, "Completed:    %d\n", health.Completed)
				fmt.Fprintf(out, "Failed:       %d\n", health.Failed)
				fmt.Fprintf(out, "Canceled:     %d\n", health.Canceled)
				fmt.Fprintf(out, "Stale leases: %d\n", health.StaleLeases)
				return nil
			})
		},
	}
}

func printFanoutStats(cmd *cobra.Command, stats *jobs.FanoutStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued:            %d\n", stats.Queued)
	fmt.Fprintf(out, "Skipped duplicate: %d\n", stats.SkippedDuplicate)
	fmt.Fprintf(out, "Skipped mismatch:  %d\n", stats.SkippedMismatch)
	fmt.Fprintf(out, "Truncated:         %d\n", stats.Truncated)
	if len(stats.ByMethod) == 0 {
		return
	}
	methods := make([]string, 0, len(stats.ByMethod))
	for method := range stats.ByMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	fmt.Fprintln(out, "By method:")
	for _, method := range methods {
		m := stats.ByMethod[method]
		fmt.Fprintf(out, "  %-14s queued=%d dup=%d mismatch=%d truncated=%d\n",
			method, m.Queued, m.SkippedDuplicate, m.SkippedMismatch, m.Truncated)
	}
}
