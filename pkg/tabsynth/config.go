package tabsynth

import (
	"fmt"

	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

// ModelEncodingType is a per-column hint telling the platform how to encode
// a column during training. EncodingAuto leaves the choice to the platform.
type ModelEncodingType string

const (
	EncodingAuto         ModelEncodingType = "AUTO"
	EncodingCategorical  ModelEncodingType = "TABULAR_CATEGORICAL"
	EncodingNumericAuto  ModelEncodingType = "TABULAR_NUMERIC_AUTO"
	EncodingNumericDigit ModelEncodingType = "TABULAR_NUMERIC_DIGIT"
	EncodingDatetime     ModelEncodingType = "TABULAR_DATETIME"
	EncodingLatLong      ModelEncodingType = "TABULAR_LAT_LONG"
	EncodingText         ModelEncodingType = "TABULAR_TEXT"
)

// knownEncodings is the set of encoding types accepted by config validation.
var knownEncodings = map[ModelEncodingType]struct{}{
	EncodingAuto:         {},
	EncodingCategorical:  {},
	EncodingNumericAuto:  {},
	EncodingNumericDigit: {},
	EncodingDatetime:     {},
	EncodingLatLong:      {},
	EncodingText:         {},
}

// GeneratorConfig describes a generator to be trained: a name and one or
// more source tables.
type GeneratorConfig struct {
	Name   string        `json:"name"`
	Tables []TableConfig `json:"tables"`
}

// TableConfig describes one source table: its name, the training data, and
// optional per-column and model-level configuration. Data is uploaded to the
// platform as CSV and never embedded in the config JSON itself.
type TableConfig struct {
	Name        string         `json:"name"`
	Data        *tabular.Table `json:"-"`
	Columns     []ColumnConfig `json:"columns,omitempty"`
	ModelConfig *ModelConfig   `json:"tabular_model_configuration,omitempty"`
}

// ColumnConfig pins the encoding type for a single column.
type ColumnConfig struct {
	Name              string            `json:"name"`
	ModelEncodingType ModelEncodingType `json:"model_encoding_type"`
}

// ModelConfig holds model-level training options for one table.
type ModelConfig struct {
	// MaxTrainingTime caps training time, in minutes. Zero means the
	// platform default.
	MaxTrainingTime int `json:"max_training_time,omitempty"`
	// MaxEpochs caps the number of training epochs. Zero means the
	// platform default.
	MaxEpochs int `json:"max_epochs,omitempty"`
	// DifferentialPrivacy, when set, trains the model under a
	// differential-privacy budget.
	DifferentialPrivacy *DPConfig `json:"differential_privacy,omitempty"`
}

// DPConfig is the differential-privacy budget for training.
type DPConfig struct {
	MaxEpsilon float64 `json:"max_epsilon"`
	Delta      float64 `json:"delta"`
}

// Validate checks the config before anything is sent to the platform: a
// non-empty generator name, at least one table, data for every table, and
// column configs that reference columns actually present in the data.
func (cfg *GeneratorConfig) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("generator config: name is required")
	}
	if len(cfg.Tables) == 0 {
		return fmt.Errorf("generator config: at least one table is required")
	}
	for i, table := range cfg.Tables {
		if table.Name == "" {
			return fmt.Errorf("generator config: table %d has no name", i)
		}
		if table.Data == nil {
			return fmt.Errorf("generator config: table %q has no data", table.Name)
		}
		if table.Data.NumRows() == 0 {
			return fmt.Errorf("generator config: table %q data is empty", table.Name)
		}
		for _, col := range table.Columns {
			if !table.Data.HasColumn(col.Name) {
				return fmt.Errorf("generator config: table %q configures unknown column %q", table.Name, col.Name)
			}
			if _, ok := knownEncodings[col.ModelEncodingType]; !ok {
				return fmt.Errorf("generator config: column %q has unknown encoding type %q", col.Name, col.ModelEncodingType)
			}
		}
		if mc := table.ModelConfig; mc != nil && mc.DifferentialPrivacy != nil {
			dp := mc.DifferentialPrivacy
			if dp.MaxEpsilon <= 0 {
				return fmt.Errorf("generator config: table %q differential privacy requires a positive max_epsilon", table.Name)
			}
			if dp.Delta <= 0 || dp.Delta >= 1 {
				return fmt.Errorf("generator config: table %q differential privacy delta must be in (0,1)", table.Name)
			}
		}
	}
	return nil
}
