package tabsynth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tabsynth/tabsynth-go/pkg/tabular"
)

const testAPIKey = "test-key"

// fixtureGenerator is the fake platform's record of one generator.
type fixtureGenerator struct {
	gen       Generator
	columns   []string
	pollsLeft int
}

// fixtureDataset is the fake platform's record of one synthetic dataset.
type fixtureDataset struct {
	ds        SyntheticDataset
	columns   []string
	pollsLeft int
}

// fakePlatform is an in-process stand-in for the TabSynth API. Jobs advance
// one step per status poll so that tests exercise the waiting paths
// deterministically. It returns canned synthetic rows; it does not model
// anything about how the real platform trains or samples.
type fakePlatform struct {
	mu         sync.Mutex
	generators map[string]*fixtureGenerator
	datasets   map[string]*fixtureDataset
	nextID     int

	trainPolls     int
	generatePolls  int
	failTraining   bool
	failGeneration bool
	flakyGETs      int

	srv *httptest.Server
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	f := &fakePlatform{
		generators:    make(map[string]*fixtureGenerator),
		datasets:      make(map[string]*fixtureDataset),
		trainPolls:    2,
		generatePolls: 2,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/generators", f.handleCreateGenerator)
	mux.HandleFunc("GET /api/v2/generators", f.handleListGenerators)
	mux.HandleFunc("POST /api/v2/generators/import", f.handleImportGenerator)
	mux.HandleFunc("GET /api/v2/generators/{id}", f.handleGetGenerator)
	mux.HandleFunc("DELETE /api/v2/generators/{id}", f.handleDeleteGenerator)
	mux.HandleFunc("POST /api/v2/generators/{id}/tables/{table}/data", f.handleUploadTable)
	mux.HandleFunc("POST /api/v2/generators/{id}/training/start", f.handleStartTraining)
	mux.HandleFunc("GET /api/v2/generators/{id}/export", f.handleExportGenerator)
	mux.HandleFunc("POST /api/v2/generators/{id}/probe", f.handleProbe)
	mux.HandleFunc("POST /api/v2/synthetic-datasets", f.handleCreateDataset)
	mux.HandleFunc("GET /api/v2/synthetic-datasets/{id}", f.handleGetDataset)
	mux.HandleFunc("DELETE /api/v2/synthetic-datasets/{id}", f.handleDeleteDataset)
	mux.HandleFunc("GET /api/v2/synthetic-datasets/{id}/data", f.handleDatasetData)

	f.srv = httptest.NewServer(f.authenticate(mux))
	t.Cleanup(f.srv.Close)
	return f
}

// client returns a Client wired to the fake platform with fast polling.
func (f *fakePlatform) client(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithPollInterval(time.Millisecond),
		WithRateLimit(10000, 10000),
	}
	c, err := NewClient(f.srv.URL, testAPIKey, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func (f *fakePlatform) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != testAPIKey {
			respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
			return
		}
		f.mu.Lock()
		flaky := f.flakyGETs > 0 && r.Method == http.MethodGet
		if flaky {
			f.flakyGETs--
		}
		f.mu.Unlock()
		if flaky {
			respondWithError(w, http.StatusInternalServerError, "INTERNAL", "transient error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakePlatform) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakePlatform) handleCreateGenerator(w http.ResponseWriter, r *http.Request) {
	var req generatorCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}
	if req.Name == "" || len(req.Tables) == 0 {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "name and tables are required")
		return
	}

	f.mu.Lock()
	fg := &fixtureGenerator{
		gen: Generator{
			ID:             f.newID("g"),
			Name:           req.Name,
			TrainingStatus: StatusNew,
			CreatedAt:      time.Now().UTC(),
		},
	}
	f.generators[fg.gen.ID] = fg
	f.mu.Unlock()

	respondWithJSON(w, http.StatusCreated, fg.gen)
}

func (f *fakePlatform) lookupGenerator(w http.ResponseWriter, r *http.Request) *fixtureGenerator {
	f.mu.Lock()
	defer f.mu.Unlock()
	fg, ok := f.generators[r.PathValue("id")]
	if !ok {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "generator not found")
		return nil
	}
	return fg
}

func (f *fakePlatform) handleGetGenerator(w http.ResponseWriter, r *http.Request) {
	fg := f.lookupGenerator(w, r)
	if fg == nil {
		return
	}

	f.mu.Lock()
	// Each status poll advances the fake training job by one step.
	if fg.gen.TrainingStatus == StatusInProgress {
		fg.pollsLeft--
		fg.gen.Progress.Value = fg.gen.Progress.Max - fg.pollsLeft
		if fg.pollsLeft <= 0 {
			if f.failTraining {
				fg.gen.TrainingStatus = StatusFailed
				fg.gen.FailureReason = "training diverged"
			} else {
				fg.gen.TrainingStatus = StatusDone
			}
		}
	}
	gen := fg.gen
	f.mu.Unlock()

	respondWithJSON(w, http.StatusOK, gen)
}

func (f *fakePlatform) handleListGenerators(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	gens := make([]Generator, 0, len(f.generators))
	for _, fg := range f.generators {
		gens = append(gens, fg.gen)
	}
	f.mu.Unlock()
	respondWithJSON(w, http.StatusOK, gens)
}

func (f *fakePlatform) handleDeleteGenerator(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.generators[id]; !ok {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "generator not found")
		return
	}
	delete(f.generators, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakePlatform) handleUploadTable(w http.ResponseWriter, r *http.Request) {
	fg := f.lookupGenerator(w, r)
	if fg == nil {
		return
	}
	table, err := tabular.ReadCSV(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid csv body")
		return
	}

	f.mu.Lock()
	fg.columns = table.Columns()
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakePlatform) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	fg := f.lookupGenerator(w, r)
	if fg == nil {
		return
	}

	f.mu.Lock()
	fg.gen.TrainingStatus = StatusInProgress
	fg.pollsLeft = f.trainPolls
	fg.gen.Progress = Progress{Value: 0, Max: f.trainPolls}
	f.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (f *fakePlatform) handleExportGenerator(w http.ResponseWriter, r *http.Request) {
	fg := f.lookupGenerator(w, r)
	if fg == nil {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = fmt.Fprintf(w, "TSEXPORT1:%s:%s", fg.gen.Name, strings.Join(fg.columns, ","))
}

func (f *fakePlatform) handleImportGenerator(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(r.Body)
	if err != nil || len(blob) == 0 {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "empty import body")
		return
	}
	parts := strings.SplitN(string(blob), ":", 3)
	if len(parts) != 3 || parts[0] != "TSEXPORT1" {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "unrecognized export format")
		return
	}

	f.mu.Lock()
	fg := &fixtureGenerator{
		gen: Generator{
			ID:             f.newID("g"),
			Name:           parts[1],
			TrainingStatus: StatusDone,
			CreatedAt:      time.Now().UTC(),
		},
		columns: strings.Split(parts[2], ","),
	}
	f.generators[fg.gen.ID] = fg
	f.mu.Unlock()

	respondWithJSON(w, http.StatusCreated, fg.gen)
}

func (f *fakePlatform) handleProbe(w http.ResponseWriter, r *http.Request) {
	fg := f.lookupGenerator(w, r)
	if fg == nil {
		return
	}

	f.mu.Lock()
	status := fg.gen.TrainingStatus
	columns := fg.columns
	f.mu.Unlock()
	if status != StatusDone {
		respondWithError(w, http.StatusConflict, "NOT_TRAINED", "generator training is not done")
		return
	}

	var req probeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	if req.Seed != nil {
		writeSeededCSV(w, columns, req.Seed)
		return
	}
	writeSyntheticCSV(w, columns, req.Size)
}

// writeSyntheticCSV emits deterministic fake rows: column name plus row index.
func writeSyntheticCSV(w http.ResponseWriter, columns []string, size int) {
	_, _ = fmt.Fprintln(w, strings.Join(columns, ","))
	for i := 0; i < size; i++ {
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = fmt.Sprintf("%s_%d", col, i)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, ","))
	}
}

// writeSeededCSV emits one row per seed row, copying seed values through and
// faking the rest.
func writeSeededCSV(w http.ResponseWriter, columns []string, seed *seedPayload) {
	seedIndex := make(map[string]int, len(seed.Columns))
	for i, col := range seed.Columns {
		seedIndex[col] = i
	}
	_, _ = fmt.Fprintln(w, strings.Join(columns, ","))
	for i, seedRow := range seed.Rows {
		cells := make([]string, len(columns))
		for j, col := range columns {
			if si, ok := seedIndex[col]; ok {
				cells[j] = seedRow[si]
			} else {
				cells[j] = fmt.Sprintf("%s_%d", col, i)
			}
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, ","))
	}
}

func (f *fakePlatform) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	fg, ok := f.generators[req.GeneratorID]
	if !ok {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "generator not found")
		return
	}
	if fg.gen.TrainingStatus != StatusDone {
		respondWithError(w, http.StatusConflict, "NOT_TRAINED", "generator training is not done")
		return
	}

	fd := &fixtureDataset{
		ds: SyntheticDataset{
			ID:               f.newID("d"),
			GeneratorID:      req.GeneratorID,
			GenerationStatus: StatusQueued,
			Size:             req.Size,
		},
		columns:   fg.columns,
		pollsLeft: f.generatePolls,
	}
	f.datasets[fd.ds.ID] = fd
	respondWithJSON(w, http.StatusCreated, fd.ds)
}

func (f *fakePlatform) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fd, ok := f.datasets[r.PathValue("id")]
	if !ok {
		f.mu.Unlock()
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "synthetic dataset not found")
		return
	}
	if !fd.ds.GenerationStatus.Terminal() {
		fd.pollsLeft--
		switch {
		case fd.pollsLeft > 0:
			fd.ds.GenerationStatus = StatusInProgress
		case f.failGeneration:
			fd.ds.GenerationStatus = StatusFailed
			fd.ds.FailureReason = "sampling ran out of memory"
		default:
			fd.ds.GenerationStatus = StatusDone
		}
	}
	ds := fd.ds
	f.mu.Unlock()
	respondWithJSON(w, http.StatusOK, ds)
}

func (f *fakePlatform) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.datasets[id]; !ok {
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "synthetic dataset not found")
		return
	}
	delete(f.datasets, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakePlatform) handleDatasetData(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fd, ok := f.datasets[r.PathValue("id")]
	if !ok {
		f.mu.Unlock()
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "synthetic dataset not found")
		return
	}
	status := fd.ds.GenerationStatus
	columns := fd.columns
	size := fd.ds.Size
	f.mu.Unlock()

	if status != StatusDone {
		respondWithError(w, http.StatusConflict, "NOT_READY", "synthetic dataset is not ready")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	writeSyntheticCSV(w, columns, size)
}

func respondWithError(w http.ResponseWriter, code int, errCode, message string) {
	respondWithJSON(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// censusTable builds a small training table used across tests.
func censusTable(t *testing.T) *tabular.Table {
	t.Helper()
	table, err := tabular.FromRecords([][]string{
		{"age", "sex", "income"},
		{"39", "Male", "<=50K"},
		{"50", "Female", ">50K"},
		{"38", "Male", "<=50K"},
	})
	if err != nil {
		t.Fatalf("failed to build census table: %v", err)
	}
	return table
}

// trainTestGenerator runs the default train flow against the fixture.
func trainTestGenerator(t *testing.T, c *Client) *Generator {
	t.Helper()
	cfg := GeneratorConfig{
		Name: "census",
		Tables: []TableConfig{{
			Name: "census",
			Data: censusTable(t),
		}},
	}
	gen, err := c.TrainGenerator(context.Background(), cfg)
	if err != nil {
		t.Fatalf("TrainGenerator() error = %v", err)
	}
	return gen
}
