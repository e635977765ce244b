package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDatasetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Inspect and export locally cached synthetic datasets",
	}
	cmd.AddCommand(
		newDatasetsListCmd(a),
		newDatasetsExportCmd(a),
		newDatasetsDeleteCmd(a),
	)
	return cmd
}

func newDatasetsListCmd(a *app) *cobra.Command {
	var generatorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached datasets for a generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.store()
			if err != nil {
				return err
			}
			recs, err := cache.ListDatasets(cmd.Context(), generatorID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tGENERATOR\tROWS\tCREATED")
			for _, rec := range recs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					rec.ID, rec.GeneratorID, humanize.Comma(int64(rec.Rows)), humanize.Time(rec.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&generatorID, "generator", "", "generator ID whose datasets to list (required)")
	_ = cmd.MarkFlagRequired("generator")
	return cmd
}

func newDatasetsExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <dataset-id>",
		Short: "Write a cached dataset to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.store()
			if err != nil {
				return err
			}
			if err := cache.ExportDataset(cmd.Context(), args[0], outPath); err != nil {
				return err
			}
			fmt.Printf("exported %s to %s\n", args[0], outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV file (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newDatasetsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>",
		Short: "Remove a dataset from the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.store()
			if err != nil {
				return err
			}
			if err := cache.DeleteDataset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
