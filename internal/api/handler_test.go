package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"air2graph/internal/domain"
	"air2graph/internal/ingest"
)

type stubTables struct{}

func (stubTables) ListAllRecords(context.Context, string) ([]domain.SourceRecord, error) {
	return nil, nil
}

func (stubTables) UpdateRecord(_ context.Context, _, id string, fields map[string]any) (domain.SourceRecord, error) {
	return domain.SourceRecord{ID: id, Fields: fields}, nil
}

type stubGraph struct{}

func (stubGraph) ProvisionIndex(context.Context, string, []string) error      { return nil }
func (stubGraph) ProvisionConstraint(context.Context, string, []string) error { return nil }
func (stubGraph) UpsertNodes(context.Context, string, []domain.NodeRecord) error {
	return nil
}
func (stubGraph) UpsertEdges(context.Context, []domain.EdgeRecord) (domain.EdgeStats, error) {
	return domain.EdgeStats{}, nil
}
func (stubGraph) Wipe(context.Context) error { return nil }

type stubInstructions struct{}

func (stubInstructions) Load(context.Context) (map[string]domain.IngestionInstruction, error) {
	return nil, nil
}
func (stubInstructions) Validate(context.Context) (bool, error) { return true, nil }
func (stubInstructions) UpdateLastIngested(context.Context, string, domain.UpdateType, string) error {
	return nil
}

// memRuns is a goroutine-safe in-memory run repository.
type memRuns struct {
	mu   sync.Mutex
	runs map[string]domain.IngestRun
	done chan struct{} // closed on first Finish
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]domain.IngestRun), done: make(chan struct{})}
}

func (m *memRuns) Create(_ context.Context, run *domain.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memRuns) Finish(_ context.Context, run *domain.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id string) (*domain.IngestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound("ingest run %q not found", id)
	}
	return &run, nil
}

func (m *memRuns) List(_ context.Context, _ int) ([]domain.IngestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IngestRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	return out, nil
}

func newTestServer(t *testing.T, runs domain.IngestRunRepository) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orchestrator := ingest.NewOrchestrator(stubTables{}, stubGraph{}, stubInstructions{}, runs, logger)
	srv := httptest.NewServer(NewRouter(NewHandler(orchestrator, runs, logger), []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, newMemRuns())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTriggerIngest(t *testing.T) {
	runs := newMemRuns()
	srv := newTestServer(t, runs)

	resp, err := http.Post(srv.URL+"/v1/ingest", "application/json", strings.NewReader(`{"wipe":true}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
		RunID   string `json:"run_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "accepted", body.Message)
	require.NotEmpty(t, body.RunID)

	// The run is fire-and-forget; wait for it to finish.
	select {
	case <-runs.done:
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}

	run, err := runs.GetByID(context.Background(), body.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.True(t, run.Wipe)
}

func TestTriggerIngest_EmptyBody(t *testing.T) {
	runs := newMemRuns()
	srv := newTestServer(t, runs)

	resp, err := http.Post(srv.URL+"/v1/ingest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestTriggerIngest_MalformedBody(t *testing.T) {
	srv := newTestServer(t, newMemRuns())

	resp, err := http.Post(srv.URL+"/v1/ingest", "application/json", strings.NewReader(`{"wipe":`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	runs := newMemRuns()
	finished := time.Date(2023, 5, 1, 12, 3, 0, 0, time.UTC)
	seed := domain.IngestRun{
		ID:         "run-1",
		Status:     domain.RunStatusSuccess,
		StartedAt:  time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: &finished,
		Labels:     2,
		Nodes:      10,
		Edges:      domain.EdgeStats{Created: 7, Skipped: 1},
	}
	require.NoError(t, runs.Create(context.Background(), &seed))
	srv := newTestServer(t, runs)

	resp, err := http.Get(srv.URL + "/v1/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.ID)
	assert.Equal(t, "2023-05-01T12:00:00.000Z", body.StartedAt)
	require.NotNil(t, body.FinishedAt)
	assert.Equal(t, "2023-05-01T12:03:00.000Z", *body.FinishedAt)
	assert.Equal(t, int64(7), body.EdgesCreated)
}

func TestGetRun_NotFound(t *testing.T) {
	srv := newTestServer(t, newMemRuns())

	resp, err := http.Get(srv.URL + "/v1/runs/ghost")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	runs := newMemRuns()
	require.NoError(t, runs.Create(context.Background(), &domain.IngestRun{
		ID: "run-1", Status: domain.RunStatusSuccess, StartedAt: time.Now(),
	}))
	srv := newTestServer(t, runs)

	resp, err := http.Get(srv.URL + "/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Runs []runResponse `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0].ID)
}
