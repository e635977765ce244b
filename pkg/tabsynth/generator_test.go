package tabsynth

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestTrainGeneratorWaitsForCompletion(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client(t)

	gen := trainTestGenerator(t, c)
	if gen.TrainingStatus != StatusDone {
		t.Fatalf("TrainGenerator() status = %s, want %s", gen.TrainingStatus, StatusDone)
	}
	if gen.ID == "" {
		t.Fatal("TrainGenerator() returned empty generator ID")
	}
}

func TestTrainGeneratorNoStart(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client(t)

	cfg := GeneratorConfig{
		Name:   "census",
		Tables: []TableConfig{{Name: "census", Data: censusTable(t)}},
	}
	gen, err := c.TrainGenerator(context.Background(), cfg, WithStart(false))
	if err != nil {
		t.Fatalf("TrainGenerator() error = %v", err)
	}
	if gen.TrainingStatus != StatusNew {
		t.Fatalf("status after no-start train = %s, want %s", gen.TrainingStatus, StatusNew)
	}

	// Start and wait explicitly, the way train(start=false) callers do later.
	if err := c.StartTraining(context.Background(), gen); err != nil {
		t.Fatalf("StartTraining() error = %v", err)
	}
	gen, err = c.WaitForGenerator(context.Background(), gen)
	if err != nil {
		t.Fatalf("WaitForGenerator() error = %v", err)
	}
	if gen.TrainingStatus != StatusDone {
		t.Fatalf("status after explicit wait = %s, want %s", gen.TrainingStatus, StatusDone)
	}
}

func TestTrainGeneratorNoWait(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client(t)

	cfg := GeneratorConfig{
		Name:   "census",
		Tables: []TableConfig{{Name: "census", Data: censusTable(t)}},
	}
	gen, err := c.TrainGenerator(context.Background(), cfg, WithWait(false))
	if err != nil {
		t.Fatalf("TrainGenerator() error = %v", err)
	}
	if gen.TrainingStatus.Terminal() {
		t.Fatalf("status right after no-wait train = %s, want non-terminal", gen.TrainingStatus)
	}
}

func TestWaitForGeneratorHonorsCancellation(t *testing.T) {
	f := newFakePlatform(t)
	f.trainPolls = 1 << 20
	c := f.client(t)

	cfg := GeneratorConfig{
		Name:   "census",
		Tables: []TableConfig{{Name: "census", Data: censusTable(t)}},
	}
	gen, err := c.TrainGenerator(context.Background(), cfg, WithWait(false))
	if err != nil {
		t.Fatalf("TrainGenerator() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	if _, err := c.WaitForGenerator(ctx, gen); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitForGenerator() after cancel = %v, want context.Canceled", err)
	}
}

func TestTrainGeneratorFailure(t *testing.T) {
	f := newFakePlatform(t)
	f.failTraining = true
	c := f.client(t)

	cfg := GeneratorConfig{
		Name:   "census",
		Tables: []TableConfig{{Name: "census", Data: censusTable(t)}},
	}
	gen, err := c.TrainGenerator(context.Background(), cfg)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("TrainGenerator() error = %v, want ErrJobFailed", err)
	}
	if gen == nil || gen.TrainingStatus != StatusFailed {
		t.Fatalf("failed generator handle = %+v, want FAILED status", gen)
	}
	if gen.FailureReason == "" {
		t.Error("failed generator should carry a failure reason")
	}
}

func TestTrainGeneratorRejectsInvalidConfig(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client(t)

	tests := []struct {
		name string
		cfg  GeneratorConfig
	}{
		{"no name", GeneratorConfig{Tables: []TableConfig{{Name: "t", Data: censusTable(t)}}}},
		{"no tables", GeneratorConfig{Name: "g"}},
		{"no data", GeneratorConfig{Name: "g", Tables: []TableConfig{{Name: "t"}}}},
		{"unknown column", GeneratorConfig{Name: "g", Tables: []TableConfig{{
			Name:    "t",
			Data:    censusTable(t),
			Columns: []ColumnConfig{{Name: "zipcode", ModelEncodingType: EncodingCategorical}},
		}}}},
		{"bad encoding", GeneratorConfig{Name: "g", Tables: []TableConfig{{
			Name:    "t",
			Data:    censusTable(t),
			Columns: []ColumnConfig{{Name: "age", ModelEncodingType: "TABULAR_BOGUS"}},
		}}}},
		{"bad dp delta", GeneratorConfig{Name: "g", Tables: []TableConfig{{
			Name:        "t",
			Data:        censusTable(t),
			ModelConfig: &ModelConfig{DifferentialPrivacy: &DPConfig{MaxEpsilon: 5, Delta: 2}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.TrainGenerator(context.Background(), tt.cfg); err == nil {
				t.Error("TrainGenerator() with invalid config should fail")
			}
		})
	}
}

func TestListAndDeleteGenerators(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client(t)

	gen := trainTestGenerator(t, c)

	gens, err := c.ListGenerators(context.Background())
	if err != nil {
		t.Fatalf("ListGenerators() error = %v", err)
	}
	if len(gens) != 1 || gens[0].ID != gen.ID {
		t.Fatalf("ListGenerators() = %+v, want single generator %s", gens, gen.ID)
	}

	if err := c.DeleteGenerator(context.Background(), gen); err != nil {
		t.Fatalf("DeleteGenerator() error = %v", err)
	}
	if _, err := c.GetGenerator(context.Background(), gen.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetGenerator() after delete = %v, want ErrNotFound", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client(t)
	gen := trainTestGenerator(t, c)

	var buf bytes.Buffer
	if err := c.ExportGenerator(context.Background(), gen, &buf); err != nil {
		t.Fatalf("ExportGenerator() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("ExportGenerator() wrote nothing")
	}

	imported, err := c.ImportGenerator(context.Background(), &buf)
	if err != nil {
		t.Fatalf("ImportGenerator() error = %v", err)
	}
	if imported.ID == gen.ID {
		t.Error("imported generator should get a fresh ID")
	}
	if imported.Name != gen.Name {
		t.Errorf("imported generator name = %q, want %q", imported.Name, gen.Name)
	}

	// An imported generator is immediately usable.
	sample, err := c.Probe(context.Background(), imported, WithProbeSize(2))
	if err != nil {
		t.Fatalf("Probe() on imported generator error = %v", err)
	}
	if sample.NumRows() != 2 {
		t.Errorf("probe rows = %d, want 2", sample.NumRows())
	}
}
