package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tabsynth/tabsynth-go/pkg/store"
	"github.com/tabsynth/tabsynth-go/pkg/tabsynth"
	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

// trainConfig is the on-disk form of a training run: a generator config whose
// table data is referenced by source (file path or URL) instead of embedded.
type trainConfig struct {
	Name   string             `json:"name"`
	Tables []trainTableConfig `json:"tables"`
}

type trainTableConfig struct {
	Name        string                  `json:"name"`
	Source      string                  `json:"source"`
	Columns     []tabsynth.ColumnConfig `json:"columns,omitempty"`
	ModelConfig *tabsynth.ModelConfig   `json:"tabular_model_configuration,omitempty"`
}

// loadTable resolves a table source: URLs are fetched, anything else is read
// as a local CSV file.
func loadTable(ctx context.Context, source string) (*tabular.Table, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return tabular.Fetch(ctx, nil, source)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return tabular.ReadCSV(f)
}

func newTrainCmd(a *app) *cobra.Command {
	var configPath string
	var noStart, noWait bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a new generator from a training config file",
		Long: `Train a new generator on the platform. The config file names the generator
and its tables; each table references its training data by file path or URL:

  {
    "name": "census",
    "tables": [{
      "name": "census",
      "source": "./census.csv",
      "columns": [{"name": "age", "model_encoding_type": "TABULAR_NUMERIC_AUTO"}],
      "tabular_model_configuration": {
        "max_training_time": 2,
        "differential_privacy": {"max_epsilon": 5.0, "delta": 1e-5}
      }
    }]
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raw, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to read training config: %w", err)
			}
			var tc trainConfig
			if err := json.Unmarshal(raw, &tc); err != nil {
				return fmt.Errorf("failed to parse training config: %w", err)
			}

			cfg := tabsynth.GeneratorConfig{Name: tc.Name}
			for _, table := range tc.Tables {
				data, err := loadTable(ctx, table.Source)
				if err != nil {
					return fmt.Errorf("failed to load table %q: %w", table.Name, err)
				}
				a.logger.Info("Training data loaded",
					"table", table.Name,
					"source", table.Source,
					"rows", humanize.Comma(int64(data.NumRows())),
				)
				cfg.Tables = append(cfg.Tables, tabsynth.TableConfig{
					Name:        table.Name,
					Data:        data,
					Columns:     table.Columns,
					ModelConfig: table.ModelConfig,
				})
			}

			client, err := a.apiClient()
			if err != nil {
				return err
			}
			gen, err := client.TrainGenerator(ctx, cfg,
				tabsynth.WithStart(!noStart),
				tabsynth.WithWait(!noWait),
			)
			if err != nil {
				return err
			}

			if err := a.cacheGenerator(ctx, gen, raw); err != nil {
				a.logger.Warn("Failed to cache generator locally", "error", err)
			}

			fmt.Printf("generator %s\t%s\t%s\n", gen.ID, gen.Name, gen.TrainingStatus)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the training config JSON file (required)")
	cmd.Flags().BoolVar(&noStart, "no-start", false, "create the generator without starting training")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "start training but do not wait for it to finish")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// cacheGenerator records a generator handle in the local cache.
func (a *app) cacheGenerator(ctx context.Context, gen *tabsynth.Generator, configJSON []byte) error {
	cache, err := a.store()
	if err != nil {
		return err
	}
	return cache.PutGenerator(ctx, store.GeneratorRecord{
		ID:         gen.ID,
		Name:       gen.Name,
		Status:     string(gen.TrainingStatus),
		ConfigJSON: configJSON,
		UpdatedAt:  time.Now().UTC(),
	})
}
