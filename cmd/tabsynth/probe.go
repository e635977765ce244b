package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabsynth/tabsynth-go/pkg/tabsynth"
	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

func newProbeCmd(a *app) *cobra.Command {
	var size int
	var seedPath string

	cmd := &cobra.Command{
		Use:   "probe <generator-id>",
		Short: "Sample a few synthetic rows from a trained generator",
		Long: `Probe a trained generator for a small synthetic sample, written to stdout
as CSV. With --seed, generation is conditioned on the seed CSV: one output
row per seed row, with the seed columns fixed to their given values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if size > 0 && seedPath != "" {
				return fmt.Errorf("--size and --seed are mutually exclusive")
			}

			client, err := a.apiClient()
			if err != nil {
				return err
			}
			gen, err := client.GetGenerator(ctx, args[0])
			if err != nil {
				return err
			}

			var opts []tabsynth.ProbeOption
			if seedPath != "" {
				f, err := os.Open(seedPath)
				if err != nil {
					return fmt.Errorf("failed to open seed file: %w", err)
				}
				seed, err := tabular.ReadCSV(f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("failed to parse seed file: %w", err)
				}
				opts = append(opts, tabsynth.WithSeed(seed))
			} else if size > 0 {
				opts = append(opts, tabsynth.WithProbeSize(size))
			}

			sample, err := client.Probe(ctx, gen, opts...)
			if err != nil {
				return err
			}
			return sample.WriteCSV(cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "number of rows to sample (default 1)")
	cmd.Flags().StringVar(&seedPath, "seed", "", "CSV file of fixed column values to condition on")
	return cmd
}
