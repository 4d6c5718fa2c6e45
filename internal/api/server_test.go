package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dunamismax/imagepress/internal/domain"
	"github.com/dunamismax/imagepress/internal/queue"
	"github.com/dunamismax/imagepress/internal/store"
	"github.com/hibiken/asynq"
)

func TestExtractJobIDFromStartPath(t *testing.T) {
	jobID, err := extractJobIDFromStartPath("/v1/jobs/abc123/start")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractJobIDFromStartPath("/v1/jobs/abc123"); err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestExtractJobIDFromJobPath(t *testing.T) {
	jobID, err := extractJobIDFromJobPath("/v1/jobs/abc123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractJobIDFromJobPath("/v1/jobs/abc123/start"); err == nil {
		t.Fatal("expected error for nested path")
	}
	if _, err := extractJobIDFromJobPath("/v1/jobs/"); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestCreateStartAndGetLocalJob(t *testing.T) {
	sourcePath := filepath.Join(t.TempDir(), "input.png")
	if err := os.WriteFile(sourcePath, []byte("not-a-real-png"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	enqueuer := &captureEnqueuer{}
	jobStore := store.NewMemoryJobStore()
	app := newTestServer(enqueuer, jobStore)

	body, err := json.Marshal(domain.CreateJobRequest{
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  sourcePath,
		Renditions: []domain.Rendition{
			{ID: "print_master", MaxWidth: 1600, MaxHeight: 1600},
			{ID: "scan_2x", ScaleFactor: 2, Binarize: true, Dither: true, Format: "png"},
		},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "user-42")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("create job: expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}

	var created struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.JobID == "" || created.Status != domain.JobStatusCreated {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+created.JobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get job: expected 200, got %d", rec.Code)
	}
	var fetched struct {
		UserID     string             `json:"user_id"`
		Renditions []domain.Rendition `json:"renditions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.UserID != "user-42" {
		t.Fatalf("expected user_id=user-42, got %q", fetched.UserID)
	}
	if len(fetched.Renditions) != 2 {
		t.Fatalf("expected two renditions, got %d", len(fetched.Renditions))
	}

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/"+created.JobID+"/start", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start job: expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}

	if enqueuer.payload.JobID != created.JobID {
		t.Fatalf("expected enqueued job %s, got %s", created.JobID, enqueuer.payload.JobID)
	}
	if len(enqueuer.payload.Renditions) != 2 {
		t.Fatalf("expected two renditions in payload, got %d", len(enqueuer.payload.Renditions))
	}

	job, ok, err := jobStore.Get(context.Background(), created.JobID)
	if err != nil || !ok {
		t.Fatalf("load job after start: ok=%v err=%v", ok, err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("expected status queued, got %s", job.Status)
	}
}

func TestCreateJobRejectsInvalidRendition(t *testing.T) {
	app := newTestServer(&captureEnqueuer{}, store.NewMemoryJobStore())

	body := `{"source_type":"local_file","object_key":"in.png","renditions":[{"id":"broken"}]}`
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader([]byte(body))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestStartJobWithMissingSourceConflicts(t *testing.T) {
	enqueuer := &captureEnqueuer{}
	jobStore := store.NewMemoryJobStore()
	app := newTestServer(enqueuer, jobStore)

	seed := domain.Job{
		ID:         "job-missing-src",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  filepath.Join(t.TempDir(), "absent.png"),
		Renditions: []domain.Rendition{{ID: "print_master", MaxWidth: 100, MaxHeight: 100}},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := jobStore.Create(context.Background(), seed); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/job-missing-src/start", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
	if enqueuer.calls != 0 {
		t.Fatalf("expected no enqueue, got %d calls", enqueuer.calls)
	}
}

func TestGetJobNotFound(t *testing.T) {
	app := newTestServer(&captureEnqueuer{}, store.NewMemoryJobStore())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthzAndMetricsRoutes(t *testing.T) {
	app := newTestServer(&captureEnqueuer{}, store.NewMemoryJobStore())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected metrics exposition output")
	}
}

func newTestServer(enqueuer queueEnqueuer, jobStore store.JobStore) *Server {
	return NewServer(log.New(io.Discard, "", 0), enqueuer, jobStore, nil, Options{})
}

type captureEnqueuer struct {
	calls   int
	payload queue.CleanupImagePayload
}

func (e *captureEnqueuer) EnqueueCleanupImage(_ context.Context, payload queue.CleanupImagePayload) (*asynq.TaskInfo, error) {
	e.calls++
	e.payload = payload
	return &asynq.TaskInfo{
		ID:            "task-1",
		Queue:         "default",
		Type:          queue.TypeCleanupImage,
		State:         asynq.TaskStatePending,
		NextProcessAt: time.Now().UTC(),
	}, nil
}
