package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

type CreateJobRequest struct {
	SourceType string      `json:"source_type"`
	WebhookURL string      `json:"webhook_url,omitempty"`
	ObjectKey  string      `json:"object_key,omitempty"`
	Renditions []Rendition `json:"renditions"`
}

// Adjustments are multiplicative enhancement factors. 1.0 leaves the image
// unchanged; the zero value means "not set" and is treated as 1.0.
type Adjustments struct {
	Brightness float64 `json:"brightness,omitempty"`
	Contrast   float64 `json:"contrast,omitempty"`
	Sharpness  float64 `json:"sharpness,omitempty"`
}

// Rendition describes one cleaned output of a source image. Exactly one of
// the fit bounds (max_width + max_height) or scale_factor must be set.
// Binarize is only valid together with scale_factor; Threshold defaults to
// 128 when omitted.
type Rendition struct {
	ID          string      `json:"id"`
	MaxWidth    int         `json:"max_width,omitempty"`
	MaxHeight   int         `json:"max_height,omitempty"`
	ScaleFactor float64     `json:"scale_factor,omitempty"`
	Adjust      Adjustments `json:"adjust"`
	Binarize    bool        `json:"binarize,omitempty"`
	Threshold   *int        `json:"threshold,omitempty"`
	Dither      bool        `json:"dither,omitempty"`
	Format      string      `json:"format,omitempty"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Renditions []Rendition
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if len(r.Renditions) == 0 {
		return errors.New("job must contain at least one rendition")
	}
	for i, rendition := range r.Renditions {
		if err := rendition.Validate(); err != nil {
			return fmt.Errorf("renditions[%d]: %w", i, err)
		}
	}
	return nil
}

func (r Rendition) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("id is required")
	}

	hasBounds := r.MaxWidth != 0 || r.MaxHeight != 0
	hasScale := r.ScaleFactor != 0
	switch {
	case hasBounds && hasScale:
		return errors.New("max_width/max_height and scale_factor are mutually exclusive")
	case !hasBounds && !hasScale:
		return errors.New("either max_width/max_height or scale_factor is required")
	case hasScale && r.ScaleFactor < 0:
		return errors.New("scale_factor must be > 0")
	case hasBounds && (r.MaxWidth < 1 || r.MaxHeight < 1):
		return errors.New("max_width and max_height must both be at least 1")
	}

	if r.Adjust.Brightness < 0 {
		return errors.New("adjust.brightness must be > 0 when set")
	}
	if r.Adjust.Contrast < 0 {
		return errors.New("adjust.contrast must be > 0 when set")
	}
	if r.Adjust.Sharpness < 0 {
		return errors.New("adjust.sharpness must be > 0 when set")
	}

	if r.Binarize && !hasScale {
		return errors.New("binarize requires scale_factor")
	}
	if r.Threshold != nil && (*r.Threshold < 0 || *r.Threshold > 255) {
		return errors.New("threshold must be between 0 and 255")
	}
	return nil
}
