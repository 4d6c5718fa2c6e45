package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/imagepress/internal/domain"
)

func TestCleanupImageTaskRoundTrip(t *testing.T) {
	threshold := 96
	payload := CleanupImagePayload{
		JobID:      "job-123",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job-123/source",
		Renditions: []domain.Rendition{
			{
				ID:       "print_master",
				MaxWidth: 1600, MaxHeight: 1600,
				Adjust: domain.Adjustments{Brightness: 1.2, Contrast: 0.9, Sharpness: 1.3},
				Format: "jpeg",
			},
			{
				ID:          "scan_2x",
				ScaleFactor: 2,
				Binarize:    true,
				Threshold:   &threshold,
				Dither:      true,
				Format:      "png",
			},
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewCleanupImageTask(payload)
	if err != nil {
		t.Fatalf("NewCleanupImageTask returned error: %v", err)
	}
	if task.Type() != TypeCleanupImage {
		t.Fatalf("expected task type %q, got %q", TypeCleanupImage, task.Type())
	}

	parsed, err := ParseCleanupImagePayload(task)
	if err != nil {
		t.Fatalf("ParseCleanupImagePayload returned error: %v", err)
	}

	if parsed.JobID != payload.JobID {
		t.Fatalf("expected job_id %q, got %q", payload.JobID, parsed.JobID)
	}
	if len(parsed.Renditions) != 2 {
		t.Fatalf("expected two renditions, got %d", len(parsed.Renditions))
	}
	if parsed.Renditions[1].Threshold == nil || *parsed.Renditions[1].Threshold != 96 {
		t.Fatal("expected explicit threshold to survive the round trip")
	}
	if parsed.Renditions[0].Threshold != nil {
		t.Fatal("expected omitted threshold to stay unset")
	}
}
