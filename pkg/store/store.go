package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/natefinch/atomic"

	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

// SetupSchema initializes the cache tables in the provided database. It
// should be called once before any other operations are performed. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaGenerators = `
CREATE TABLE IF NOT EXISTS generators (
    generator_id TEXT PRIMARY KEY,
    generator_name TEXT NOT NULL,
    training_status TEXT NOT NULL,
    config_json BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`
		schemaDatasets = `
CREATE TABLE IF NOT EXISTS datasets (
    dataset_id TEXT PRIMARY KEY,
    generator_id TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    csv_data BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
`
		schemaDatasetIndex = `
CREATE INDEX IF NOT EXISTS idx_datasets_generator ON datasets (generator_id);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaGenerators); err != nil {
		return fmt.Errorf("could not create generators schema: %w", err)
	}
	if _, err = tx.Exec(schemaDatasets); err != nil {
		return fmt.Errorf("could not create datasets schema: %w", err)
	}
	if _, err = tx.Exec(schemaDatasetIndex); err != nil {
		return fmt.Errorf("could not create dataset index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// GeneratorRecord is the locally cached view of a platform generator:
// its handle fields plus the config it was trained from.
type GeneratorRecord struct {
	ID         string
	Name       string
	Status     string
	ConfigJSON []byte
	UpdatedAt  time.Time
}

// DatasetRecord is the metadata of a locally cached synthetic dataset. The
// rows themselves are returned separately as a tabular.Table.
type DatasetRecord struct {
	ID          string
	GeneratorID string
	Rows        int
	CreatedAt   time.Time
}

// Store is a local SQLite-backed cache of generator handles and downloaded
// synthetic datasets. It holds prepared SQL statements for efficient
// database interaction.
type Store struct {
	db                 *sql.DB
	stmtPutGenerator   *sql.Stmt
	stmtGetGenerator   *sql.Stmt
	stmtListGenerators *sql.Stmt
	stmtPutDataset     *sql.Stmt
	stmtGetDataset     *sql.Stmt
	stmtListDatasets   *sql.Stmt
	stmtDeleteDataset  *sql.Stmt
	logger             *slog.Logger
}

// New creates a Store on top of an initialized database (see SetupSchema).
// It pre-compiles all necessary SQL statements, returning an error if any
// preparation fails.
func New(db *sql.DB) (*Store, error) {
	stmtPutGenerator, err := db.Prepare(`
INSERT INTO generators (generator_id, generator_name, training_status, config_json, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(generator_id) DO UPDATE SET generator_name = excluded.generator_name,
    training_status = excluded.training_status, config_json = excluded.config_json, updated_at = excluded.updated_at;`)
	if err != nil {
		return nil, err
	}

	stmtGetGenerator, err := db.Prepare(`SELECT generator_name, training_status, config_json, updated_at FROM generators WHERE generator_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtListGenerators, err := db.Prepare(`SELECT generator_id, generator_name, training_status, config_json, updated_at FROM generators ORDER BY updated_at DESC;`)
	if err != nil {
		return nil, err
	}

	stmtPutDataset, err := db.Prepare(`
INSERT INTO datasets (dataset_id, generator_id, row_count, csv_data, created_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(dataset_id) DO UPDATE SET row_count = excluded.row_count, csv_data = excluded.csv_data, created_at = excluded.created_at;`)
	if err != nil {
		return nil, err
	}

	stmtGetDataset, err := db.Prepare(`SELECT generator_id, row_count, csv_data, created_at FROM datasets WHERE dataset_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtListDatasets, err := db.Prepare(`SELECT dataset_id, generator_id, row_count, created_at FROM datasets WHERE generator_id = ? ORDER BY created_at DESC;`)
	if err != nil {
		return nil, err
	}

	stmtDeleteDataset, err := db.Prepare(`DELETE FROM datasets WHERE dataset_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                 db,
		stmtPutGenerator:   stmtPutGenerator,
		stmtGetGenerator:   stmtGetGenerator,
		stmtListGenerators: stmtListGenerators,
		stmtPutDataset:     stmtPutDataset,
		stmtGetDataset:     stmtGetDataset,
		stmtListDatasets:   stmtListDatasets,
		stmtDeleteDataset:  stmtDeleteDataset,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It should be
// called when the Store is no longer needed to free up database resources.
func (s *Store) Close() {
	_ = s.stmtPutGenerator.Close()
	_ = s.stmtGetGenerator.Close()
	_ = s.stmtListGenerators.Close()
	_ = s.stmtPutDataset.Close()
	_ = s.stmtGetDataset.Close()
	_ = s.stmtListDatasets.Close()
	_ = s.stmtDeleteDataset.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// PutGenerator inserts or updates the cached record for a generator.
func (s *Store) PutGenerator(ctx context.Context, rec GeneratorRecord) error {
	_, err := s.stmtPutGenerator.ExecContext(ctx, rec.ID, rec.Name, rec.Status, rec.ConfigJSON, rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to cache generator %s: %w", rec.ID, err)
	}
	return nil
}

// GetGenerator retrieves a cached generator record by ID. A missing record
// is reported as sql.ErrNoRows.
func (s *Store) GetGenerator(ctx context.Context, id string) (GeneratorRecord, error) {
	rec := GeneratorRecord{ID: id}
	var updatedAt int64
	err := s.stmtGetGenerator.QueryRowContext(ctx, id).Scan(&rec.Name, &rec.Status, &rec.ConfigJSON, &updatedAt)
	if err != nil {
		return GeneratorRecord{}, err
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

// ListGenerators returns all cached generator records, most recently updated
// first.
func (s *Store) ListGenerators(ctx context.Context) ([]GeneratorRecord, error) {
	rows, err := s.stmtListGenerators.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var recs []GeneratorRecord
	for rows.Next() {
		var rec GeneratorRecord
		var updatedAt int64
		if err = rows.Scan(&rec.ID, &rec.Name, &rec.Status, &rec.ConfigJSON, &updatedAt); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		recs = append(recs, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteGenerator removes a cached generator and all of its cached datasets.
// The operation is performed within a transaction.
func (s *Store) DeleteGenerator(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM datasets WHERE generator_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove cached datasets for generator %s: %w", id, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM generators WHERE generator_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove cached generator %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Cached generator removed",
		slog.String("generator_id", id),
	)
	return tx.Commit()
}

// PutDataset caches a downloaded synthetic dataset as CSV.
func (s *Store) PutDataset(ctx context.Context, rec DatasetRecord, data *tabular.Table) error {
	var buf bytes.Buffer
	if err := data.WriteCSV(&buf); err != nil {
		return fmt.Errorf("failed to encode dataset %s: %w", rec.ID, err)
	}

	_, err := s.stmtPutDataset.ExecContext(ctx, rec.ID, rec.GeneratorID, data.NumRows(), buf.Bytes(), rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to cache dataset %s: %w", rec.ID, err)
	}

	s.logger.InfoContext(ctx, "Dataset cached",
		slog.String("dataset_id", rec.ID),
		slog.String("generator_id", rec.GeneratorID),
		slog.Int("rows", data.NumRows()),
	)
	return nil
}

// GetDataset retrieves a cached dataset and its rows by ID. A missing record
// is reported as sql.ErrNoRows.
func (s *Store) GetDataset(ctx context.Context, id string) (DatasetRecord, *tabular.Table, error) {
	rec := DatasetRecord{ID: id}
	var csvData []byte
	var createdAt int64
	err := s.stmtGetDataset.QueryRowContext(ctx, id).Scan(&rec.GeneratorID, &rec.Rows, &csvData, &createdAt)
	if err != nil {
		return DatasetRecord{}, nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	table, err := tabular.ReadCSV(bytes.NewReader(csvData))
	if err != nil {
		return DatasetRecord{}, nil, fmt.Errorf("failed to decode cached dataset %s: %w", id, err)
	}
	return rec, table, nil
}

// ListDatasets returns the metadata of all cached datasets for a generator,
// newest first.
func (s *Store) ListDatasets(ctx context.Context, generatorID string) ([]DatasetRecord, error) {
	rows, err := s.stmtListDatasets.QueryContext(ctx, generatorID)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var recs []DatasetRecord
	for rows.Next() {
		var rec DatasetRecord
		var createdAt int64
		if err = rows.Scan(&rec.ID, &rec.GeneratorID, &rec.Rows, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		recs = append(recs, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteDataset removes a single cached dataset.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	if _, err := s.stmtDeleteDataset.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("failed to remove cached dataset %s: %w", id, err)
	}
	return nil
}

// ExportDataset writes a cached dataset to a CSV file at the given path. The
// file is written atomically so a partial export never replaces an existing
// one.
func (s *Store) ExportDataset(ctx context.Context, id, path string) error {
	_, table, err := s.GetDataset(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load cached dataset %s: %w", id, err)
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		return fmt.Errorf("failed to encode dataset %s: %w", id, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write dataset %s to %s: %w", id, path, err)
	}

	s.logger.InfoContext(ctx, "Dataset exported",
		slog.String("dataset_id", id),
		slog.String("path", path),
		slog.Int("rows", table.NumRows()),
	)
	return nil
}
