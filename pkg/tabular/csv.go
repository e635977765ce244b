package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ReadCSV parses a CSV stream into a Table. The first record is taken as the
// header row. Ragged rows are rejected by the underlying csv reader. An empty
// stream yields an empty table with no columns.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	t, err := New(header...)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		if err := t.AppendRow(record); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the table as CSV, header row first.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Fetch downloads a CSV dataset from the given URL and parses it into a
// Table. If client is nil, http.DefaultClient is used.
func Fetch(ctx context.Context, client *http.Client, url string) (*Table, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return ReadCSV(resp.Body)
}
