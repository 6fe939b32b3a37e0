package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/orchestrator"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var noFanout bool

	cmd := &cobra.Command{
		Use:   "compare <left-revision> <right-revision>",
		Short: "Create a comparison job between two revisions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				kind, ok := entity.ParseKind(kindFlag)
				if !ok {
					return fmt.Errorf("unknown kind %q (expected sheet or block)", kindFlag)
				}
				parent, err := orc.StartCompare(cmd.Context(), kind, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created comparison job %d\n", parent.ID)
				if noFanout {
					return nil
				}
				stats, err := orc.Fanout(cmd.Context(), parent.ID)
				if err != nil {
					return err
				}
				printFanoutStats(cmd, stats)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "sheet", "Entity kind to compare (sheet or block)")
	cmd.Flags().BoolVar(&noFanout, "no-fanout", false, "Create the parent job without expanding pairs")
	return cmd
}

func newFanoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fanout <parent-job-id>",
		Short: "Expand a comparison job into per-pair child jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				stats, err := orc.Fanout(cmd.Context(), id)
				if err != nil {
					return err
				}
				printFanoutStats(cmd, stats)
				return nil
			})
		},
	}
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <parent-job-id>",
		Short: "Derive a parent job's terminal state from its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				parent, err := orc.Reconcile(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d status: %s\n", parent.ID, parent.Status)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <parent-job-id>",
		Short: "Cancel a comparison's queued children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				canceled, err := orc.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled %d queued child jobs\n", canceled)
				return nil
			})
		},
	}
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}
