package domain

import "testing"

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Renditions: []Rendition{
			{
				ID:       "print_master",
				MaxWidth: 1600, MaxHeight: 1600,
			},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateJobRequest{
		SourceType: SourceTypeLocalFile,
		Renditions: []Rendition{
			{
				ID:       "print_master",
				MaxWidth: 1600, MaxHeight: 1600,
			},
		},
	}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for local_file object_key")
	}

	unsupportedSourceType := CreateJobRequest{
		SourceType: "http_url",
		Renditions: []Rendition{
			{
				ID:       "print_master",
				MaxWidth: 1600, MaxHeight: 1600,
			},
		},
	}
	if err := unsupportedSourceType.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}
}

func TestRenditionValidate(t *testing.T) {
	threshold := 128
	badThreshold := 300

	cases := []struct {
		name      string
		rendition Rendition
		wantErr   bool
	}{
		{
			name:      "fit bounds",
			rendition: Rendition{ID: "fit", MaxWidth: 1600, MaxHeight: 1600},
		},
		{
			name:      "scale with binarize",
			rendition: Rendition{ID: "scan", ScaleFactor: 2, Binarize: true, Threshold: &threshold, Dither: true},
		},
		{
			name:      "missing id",
			rendition: Rendition{MaxWidth: 100, MaxHeight: 100},
			wantErr:   true,
		},
		{
			name:      "bounds and scale together",
			rendition: Rendition{ID: "both", MaxWidth: 100, MaxHeight: 100, ScaleFactor: 2},
			wantErr:   true,
		},
		{
			name:      "neither bounds nor scale",
			rendition: Rendition{ID: "none"},
			wantErr:   true,
		},
		{
			name:      "negative scale",
			rendition: Rendition{ID: "neg", ScaleFactor: -1},
			wantErr:   true,
		},
		{
			name:      "partial bounds",
			rendition: Rendition{ID: "half", MaxWidth: 100},
			wantErr:   true,
		},
		{
			name:      "negative brightness",
			rendition: Rendition{ID: "dark", MaxWidth: 100, MaxHeight: 100, Adjust: Adjustments{Brightness: -0.5}},
			wantErr:   true,
		},
		{
			name:      "binarize without scale",
			rendition: Rendition{ID: "mono", MaxWidth: 100, MaxHeight: 100, Binarize: true},
			wantErr:   true,
		},
		{
			name:      "threshold out of range",
			rendition: Rendition{ID: "hot", ScaleFactor: 2, Binarize: true, Threshold: &badThreshold},
			wantErr:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rendition.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected valid rendition, got error: %v", err)
			}
		})
	}
}
