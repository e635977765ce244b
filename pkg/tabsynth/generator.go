package tabsynth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Generator is a handle to a trained (or in-training) model on the platform.
// The model itself never leaves the platform; the handle carries the ID and
// the last-seen training state.
type Generator struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TrainingStatus JobStatus `json:"training_status"`
	Progress       Progress  `json:"progress"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// trainOptions is used by TrainGenerator to configure default behavior.
type trainOptions struct {
	start bool
	wait  bool
}

// TrainOption configures a TrainGenerator call.
type TrainOption func(*trainOptions)

// WithStart controls whether training is started after the generator is
// created and its data uploaded. It defaults to true; pass false to create
// the generator and start training later with StartTraining.
func WithStart(start bool) TrainOption {
	return func(o *trainOptions) { o.start = start }
}

// WithWait controls whether TrainGenerator blocks until training reaches a
// terminal status. It defaults to true and is ignored when training is not
// started.
func WithWait(wait bool) TrainOption {
	return func(o *trainOptions) { o.wait = wait }
}

// generatorCreateRequest is the wire form of GeneratorConfig: table data is
// uploaded separately as CSV and stripped from the JSON.
type generatorCreateRequest struct {
	Name   string                     `json:"name"`
	Tables []generatorCreateTableSpec `json:"tables"`
}

type generatorCreateTableSpec struct {
	Name        string         `json:"name"`
	Columns     []ColumnConfig `json:"columns,omitempty"`
	ModelConfig *ModelConfig   `json:"tabular_model_configuration,omitempty"`
}

// TrainGenerator creates a generator from the given config, uploads each
// table's data as CSV, and by default starts training and waits for it to
// finish. The returned Generator reflects the last-seen training state.
func (c *Client) TrainGenerator(ctx context.Context, cfg GeneratorConfig, opts ...TrainOption) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &trainOptions{start: true, wait: true}
	for _, opt := range opts {
		opt(options)
	}

	req := generatorCreateRequest{Name: cfg.Name}
	for _, table := range cfg.Tables {
		req.Tables = append(req.Tables, generatorCreateTableSpec{
			Name:        table.Name,
			Columns:     table.Columns,
			ModelConfig: table.ModelConfig,
		})
	}

	var gen Generator
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/generators", req, &gen); err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	for _, table := range cfg.Tables {
		if err := c.uploadTableData(ctx, gen.ID, table); err != nil {
			return nil, err
		}
	}

	c.logger.InfoContext(ctx, "Generator created",
		slog.String("generator_id", gen.ID),
		slog.String("name", gen.Name),
		slog.Int("tables", len(cfg.Tables)),
	)

	if !options.start {
		return &gen, nil
	}
	if err := c.StartTraining(ctx, &gen); err != nil {
		return nil, err
	}
	if !options.wait {
		return c.GetGenerator(ctx, gen.ID)
	}
	return c.WaitForGenerator(ctx, &gen)
}

// uploadTableData sends one table's rows to the platform as CSV.
func (c *Client) uploadTableData(ctx context.Context, generatorID string, table TableConfig) error {
	var buf bytes.Buffer
	if err := table.Data.WriteCSV(&buf); err != nil {
		return fmt.Errorf("failed to encode data for table %q: %w", table.Name, err)
	}

	path := fmt.Sprintf("%s/generators/%s/tables/%s/data", apiPrefix, generatorID, table.Name)
	resp, err := c.send(ctx, http.MethodPost, path, "text/csv", buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to upload data for table %q: %w", table.Name, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	c.logger.DebugContext(ctx, "Table data uploaded",
		slog.String("generator_id", generatorID),
		slog.String("table", table.Name),
		slog.Int("rows", table.Data.NumRows()),
	)
	return nil
}

// StartTraining asks the platform to begin (or resume) training the
// generator. It returns immediately; use WaitForGenerator to block until a
// terminal status.
func (c *Client) StartTraining(ctx context.Context, gen *Generator) error {
	path := fmt.Sprintf("%s/generators/%s/training/start", apiPrefix, gen.ID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to start training for generator %s: %w", gen.ID, err)
	}
	return nil
}

// WaitForGenerator polls the generator until training reaches a terminal
// status. It returns the final handle on success, and an error wrapping
// ErrJobFailed if training fails or is canceled. The poll interval is set by
// WithPollInterval; the context bounds the total wait.
func (c *Client) WaitForGenerator(ctx context.Context, gen *Generator) (*Generator, error) {
	for {
		current, err := c.GetGenerator(ctx, gen.ID)
		if err != nil {
			return nil, err
		}
		if current.TrainingStatus.Terminal() {
			if current.TrainingStatus != StatusDone {
				return current, fmt.Errorf("training of generator %s ended with status %s (%s): %w",
					current.ID, current.TrainingStatus, current.FailureReason, ErrJobFailed)
			}
			c.logger.InfoContext(ctx, "Training completed",
				slog.String("generator_id", current.ID),
				slog.String("name", current.Name),
			)
			return current, nil
		}

		c.logger.DebugContext(ctx, "Training in progress",
			slog.String("generator_id", current.ID),
			slog.String("status", string(current.TrainingStatus)),
			slog.Int("progress_value", current.Progress.Value),
			slog.Int("progress_max", current.Progress.Max),
		)
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
}

// GetGenerator fetches the current state of a generator by ID.
func (c *Client) GetGenerator(ctx context.Context, id string) (*Generator, error) {
	var gen Generator
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/generators/"+id, nil, &gen); err != nil {
		return nil, fmt.Errorf("failed to get generator %s: %w", id, err)
	}
	return &gen, nil
}

// ListGenerators returns all generators visible to the API key.
func (c *Client) ListGenerators(ctx context.Context) ([]Generator, error) {
	var gens []Generator
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/generators", nil, &gens); err != nil {
		return nil, fmt.Errorf("failed to list generators: %w", err)
	}
	return gens, nil
}

// DeleteGenerator removes the generator and its trained model from the
// platform. Synthetic datasets already produced from it are unaffected.
func (c *Client) DeleteGenerator(ctx context.Context, gen *Generator) error {
	if err := c.do(ctx, http.MethodDelete, apiPrefix+"/generators/"+gen.ID, nil, nil); err != nil {
		return fmt.Errorf("failed to delete generator %s: %w", gen.ID, err)
	}
	c.logger.InfoContext(ctx, "Generator deleted", slog.String("generator_id", gen.ID))
	return nil
}

// ExportGenerator downloads the platform's portable representation of a
// trained generator and writes it to w. Only generators whose training is
// DONE can be exported.
func (c *Client) ExportGenerator(ctx context.Context, gen *Generator, w io.Writer) error {
	path := fmt.Sprintf("%s/generators/%s/export", apiPrefix, gen.ID)
	resp, err := c.send(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return fmt.Errorf("failed to export generator %s: %w", gen.ID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write exported generator %s: %w", gen.ID, err)
	}
	return nil
}

// ImportGenerator uploads a previously exported generator and returns the
// new handle. The imported generator is immediately usable for probing and
// generation.
func (c *Client) ImportGenerator(ctx context.Context, r io.Reader) (*Generator, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read generator import: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, apiPrefix+"/generators/import", "application/octet-stream", body)
	if err != nil {
		return nil, fmt.Errorf("failed to import generator: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var gen Generator
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("failed to decode imported generator: %w", err)
	}
	c.logger.InfoContext(ctx, "Generator imported",
		slog.String("generator_id", gen.ID),
		slog.String("name", gen.Name),
	)
	return &gen, nil
}
