package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"redline/internal/align"
	"redline/internal/config"
	"redline/internal/orchestrator"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	alignCmd := &cobra.Command{
		Use:   "align",
		Short: "Manual alignment from operator-picked reference points",
	}
	alignCmd.AddCommand(newAlignPreviewCommand(ctx))
	alignCmd.AddCommand(newAlignCommitCommand(ctx))
	return alignCmd
}

func newAlignPreviewCommand(ctx *commandContext) *cobra.Command {
	var leftSpec, rightSpec string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Fit a transform from three points per side without persisting",
		RunE: func(cmd *cobra.Command, args []string) error {
			left, right, err := parsePointSpecs(leftSpec, rightSpec)
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				result, err := orc.PreviewManualAlignment(left, right)
				if err != nil {
					return err
				}
				printManualResult(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&leftSpec, "left", "", `Left points as "x,y;x,y;x,y"`)
	cmd.Flags().StringVar(&rightSpec, "right", "", `Right points as "x,y;x,y;x,y"`)
	_ = cmd.MarkFlagRequired("left")
	_ = cmd.MarkFlagRequired("right")
	return cmd
}

func newAlignCommitCommand(ctx *commandContext) *cobra.Command {
	var leftSpec, rightSpec string
	var jobID int64

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Persist a manual alignment as a pair job's result",
		RunE: func(cmd *cobra.Command, args []string) error {
			left, right, err := parsePointSpecs(leftSpec, rightSpec)
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(_ *config.Config, orc *orchestrator.Orchestrator) error {
				outcome, err := orc.CommitManualAlignment(cmd.Context(), jobID, left, right)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Committed manual alignment for job %d\n", jobID)
				fmt.Fprintf(out, "  scale=%.6f rotation=%.6f translate=(%.2f, %.2f)\n",
					outcome.Scale, outcome.RotationRad, outcome.TranslateX, outcome.TranslateY)
				for _, warning := range outcome.Warnings {
					fmt.Fprintf(out, "  warning: %s\n", warning)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&jobID, "job", 0, "Pair job ID to attach the alignment to")
	cmd.Flags().StringVar(&leftSpec, "left", "", `Left points as "x,y;x,y;x,y"`)
	cmd.Flags().StringVar(&rightSpec, "right", "", `Right points as "x,y;x,y;x,y"`)
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("left")
	_ = cmd.MarkFlagRequired("right")
	return cmd
}

func printManualResult(cmd *cobra.Command, result *align.ManualResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scale=%.6f rotation=%.6f translate=(%.2f, %.2f) max_residual=%.3f\n",
		result.Transform.Scale, result.Transform.Rotation,
		result.Transform.TranslateX, result.Transform.TranslateY, result.MaxResidual)
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
}

// parsePointSpecs decodes two "x,y;x,y;x,y" flag values.
func parsePointSpecs(leftSpec, rightSpec string) ([]align.Point, []align.Point, error) {
	left, err := parsePoints(leftSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("--left: %w", err)
	}
	right, err := parsePoints(rightSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("--right: %w", err)
	}
	return left, right, nil
}

func parsePoints(spec string) ([]align.Point, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("no points given")
	}
	parts := strings.Split(spec, ";")
	points := make([]align.Point, 0, len(parts))
	for _, part := range parts {
		coords := strings.Split(strings.TrimSpace(part), ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid point %q (expected x,y)", part)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid x in %q", part)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid y in %q", part)
		}
		points = append(points, align.Point{X: x, Y: y})
	}
	return points, nil
}
