package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/imagepress/internal/domain"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	job := domain.Job{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "input.png",
		Renditions: []domain.Rendition{
			{ID: "print_master", MaxWidth: 1600, MaxHeight: 1600},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	got, ok, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !ok {
		t.Fatal("expected job to exist")
	}
	if got.UserID != "user-1" || len(got.Renditions) != 1 {
		t.Fatalf("unexpected job data: %+v", got)
	}

	updated, err := s.UpdateStatus(ctx, "job-1", domain.JobStatusQueued)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.JobStatusQueued {
		t.Fatalf("expected status %q, got %q", domain.JobStatusQueued, updated.Status)
	}
	if !updated.UpdatedAt.After(job.UpdatedAt) && !updated.UpdatedAt.Equal(job.UpdatedAt) {
		t.Fatal("expected updated_at to move forward")
	}

	if _, _, err := s.Get(ctx, "missing"); err != nil {
		t.Fatalf("get missing job: %v", err)
	}
	if _, err := s.UpdateStatus(ctx, "missing", domain.JobStatusFailed); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryJobStoreUsageLogs(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	if err := s.CreateUsageLog(ctx, domain.UsageLog{
		UserID:          "user-1",
		JobID:           "job-1",
		PixelsProcessed: 640 * 480,
		BytesWritten:    2048,
		ComputeTimeMS:   12,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create usage log: %v", err)
	}

	logs := s.UsageLogs()
	if len(logs) != 1 {
		t.Fatalf("expected one usage log, got %d", len(logs))
	}
	if logs[0].BytesWritten != 2048 {
		t.Fatalf("expected bytes_written=2048, got %d", logs[0].BytesWritten)
	}
}
