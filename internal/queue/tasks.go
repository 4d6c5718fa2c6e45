package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/imagepress/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeCleanupImage = "image:cleanup"

type CleanupImagePayload struct {
	JobID       string             `json:"job_id"`
	SourceType  string             `json:"source_type"`
	WebhookURL  string             `json:"webhook_url,omitempty"`
	ObjectKey   string             `json:"object_key"`
	Renditions  []domain.Rendition `json:"renditions"`
	RequestedAt time.Time          `json:"requested_at"`
}

func NewCleanupImageTask(payload CleanupImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeCleanupImage, body), nil
}

func ParseCleanupImagePayload(task *asynq.Task) (CleanupImagePayload, error) {
	var payload CleanupImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CleanupImagePayload{}, fmt.Errorf("unmarshal cleanup payload: %w", err)
	}
	return payload, nil
}
