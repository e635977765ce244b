package tabsynth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

// probeOptions is used by Probe to configure default options.
type probeOptions struct {
	size int
	seed *tabular.Table
}

// ProbeOption configures a Probe call.
type ProbeOption func(*probeOptions)

// WithProbeSize requests n unconditioned sample rows. It is mutually
// exclusive with WithSeed.
func WithProbeSize(n int) ProbeOption {
	return func(o *probeOptions) { o.size = n }
}

// WithSeed conditions the probe on the given seed table: the platform
// returns exactly one synthesized row per seed row, with the seed columns
// fixed to their given values. It is mutually exclusive with WithProbeSize.
func WithSeed(seed *tabular.Table) ProbeOption {
	return func(o *probeOptions) { o.seed = seed }
}

// probeRequest is the wire form of a probe call.
type probeRequest struct {
	Size int          `json:"size,omitempty"`
	Seed *seedPayload `json:"seed,omitempty"`
}

// seedPayload carries a seed table as JSON.
type seedPayload struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Probe synchronously samples a small number of synthetic rows from the
// generator, without the job machinery of Generate. Without options it
// returns a single row. Probing requires the generator's training to be
// DONE.
func (c *Client) Probe(ctx context.Context, gen *Generator, opts ...ProbeOption) (*tabular.Table, error) {
	options := &probeOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.size > 0 && options.seed != nil {
		return nil, fmt.Errorf("probe: size and seed are mutually exclusive")
	}
	if options.seed != nil && options.seed.NumRows() == 0 {
		return nil, fmt.Errorf("probe: seed table has no rows")
	}

	req := probeRequest{}
	switch {
	case options.seed != nil:
		records := options.seed.Records()
		req.Seed = &seedPayload{Columns: records[0], Rows: records[1:]}
	case options.size > 0:
		req.Size = options.size
	default:
		req.Size = 1
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode probe request: %w", err)
	}
	path := fmt.Sprintf("%s/generators/%s/probe", apiPrefix, gen.ID)
	resp, err := c.send(ctx, http.MethodPost, path, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("failed to probe generator %s: %w", gen.ID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	sample, err := tabular.ReadCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse probe result: %w", err)
	}
	return sample, nil
}
