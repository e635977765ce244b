package main

import (
	"github.com/spf13/cobra"

	"github.com/tabsynth/tabsynth-go/pkg/report"
)

func newReportCmd(a *app) *cobra.Command {
	var originalPath, syntheticPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compare a synthetic dataset against the original",
		Long: `Compute per-column drift between an original dataset and a synthetic one:
mean and standard deviation deltas for numeric columns, and the L1 distance
between category frequencies for everything else. Both inputs may be file
paths or URLs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			original, err := loadTable(ctx, originalPath)
			if err != nil {
				return err
			}
			synthetic, err := loadTable(ctx, syntheticPath)
			if err != nil {
				return err
			}

			cmp, err := report.Compare(original, synthetic)
			if err != nil {
				return err
			}
			return cmp.Render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&originalPath, "original", "", "original dataset CSV (required)")
	cmd.Flags().StringVar(&syntheticPath, "synthetic", "", "synthetic dataset CSV (required)")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("synthetic")
	return cmd
}
