package main

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newGeneratorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generators",
		Short: "Manage generators on the platform",
	}
	cmd.AddCommand(
		newGeneratorsListCmd(a),
		newGeneratorsGetCmd(a),
		newGeneratorsDeleteCmd(a),
		newGeneratorsExportCmd(a),
		newGeneratorsImportCmd(a),
	)
	return cmd
}

func newGeneratorsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all generators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			gens, err := client.ListGenerators(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
			for _, gen := range gens {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", gen.ID, gen.Name, gen.TrainingStatus)
			}
			return tw.Flush()
		},
	}
}

func newGeneratorsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <generator-id>",
		Short: "Show one generator's training state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			gen, err := client.GetGenerator(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:\t%s\nname:\t%s\nstatus:\t%s\nprogress:\t%d/%d\n",
				gen.ID, gen.Name, gen.TrainingStatus, gen.Progress.Value, gen.Progress.Max)
			if gen.FailureReason != "" {
				fmt.Printf("failure:\t%s\n", gen.FailureReason)
			}
			return nil
		},
	}
}

func newGeneratorsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <generator-id>",
		Short: "Delete a generator from the platform and the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			gen, err := client.GetGenerator(ctx, args[0])
			if err != nil {
				return err
			}
			if err := client.DeleteGenerator(ctx, gen); err != nil {
				return err
			}
			if cache, err := a.store(); err == nil {
				if err := cache.DeleteGenerator(ctx, gen.ID); err != nil {
					a.logger.Warn("Failed to remove generator from local cache", "error", err)
				}
			}
			fmt.Printf("deleted %s\n", gen.ID)
			return nil
		},
	}
}

func newGeneratorsExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <generator-id>",
		Short: "Export a trained generator to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			gen, err := client.GetGenerator(ctx, args[0])
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := client.ExportGenerator(ctx, gen, &buf); err != nil {
				return err
			}
			if err := atomic.WriteFile(outPath, &buf); err != nil {
				return fmt.Errorf("failed to write export to %s: %w", outPath, err)
			}
			fmt.Printf("exported %s to %s\n", gen.ID, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newGeneratorsImportCmd(a *app) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a previously exported generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			f, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer func() {
				_ = f.Close()
			}()

			gen, err := client.ImportGenerator(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Printf("generator %s\t%s\t%s\n", gen.ID, gen.Name, gen.TrainingStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "exported generator file (required)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
