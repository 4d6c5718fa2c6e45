package pipeline

import (
	"errors"
	"math"
	"testing"
)

func TestFitWithinTargetSize(t *testing.T) {
	cases := []struct {
		name          string
		mode          ResizeMode
		width, height int
		wantW, wantH  int
	}{
		{"landscape shrink", FitWithin(1600, 1600), 3200, 2400, 1600, 1200},
		{"portrait shrink", FitWithin(1600, 1600), 2400, 3200, 1200, 1600},
		{"already inside", FitWithin(1600, 1600), 800, 600, 800, 600},
		{"exact fit", FitWithin(1600, 1600), 1600, 1600, 1600, 1600},
		{"never upscale", FitWithin(1600, 1600), 100, 50, 100, 50},
		{"narrow box", FitWithin(10, 1000), 400, 300, 10, 8},
		{"degenerate height", FitWithin(100, 100), 10000, 1, 100, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := tc.mode.targetSize(tc.width, tc.height)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Fatalf("targetSize(%d, %d) = %dx%d, want %dx%d", tc.width, tc.height, gotW, gotH, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestScaleByTargetSize(t *testing.T) {
	cases := []struct {
		name          string
		factor        float64
		width, height int
		wantW, wantH  int
	}{
		{"double", 2.0, 640, 480, 1280, 960},
		{"half rounds", 0.5, 641, 481, 321, 241},
		{"enlarge odd", 3.7, 10, 10, 37, 37},
		{"floor of one", 0.001, 100, 100, 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := ScaleBy(tc.factor).targetSize(tc.width, tc.height)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Fatalf("targetSize(%d, %d) = %dx%d, want %dx%d", tc.width, tc.height, gotW, gotH, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params should validate, got %v", err)
	}

	valid := Params{Brightness: 1, Contrast: 1, Sharpness: 1.15, Mode: ScaleBy(2), Binarize: true, Threshold: 128, Dither: true}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid enlarge params, got %v", err)
	}

	cases := []struct {
		name   string
		params Params
	}{
		{"zero brightness", Params{Contrast: 1, Sharpness: 1, Mode: FitWithin(100, 100)}},
		{"negative contrast", Params{Brightness: 1, Contrast: -0.5, Sharpness: 1, Mode: FitWithin(100, 100)}},
		{"nan sharpness", Params{Brightness: 1, Contrast: 1, Sharpness: math.NaN(), Mode: FitWithin(100, 100)}},
		{"zero scale factor", Params{Brightness: 1, Contrast: 1, Sharpness: 1, Mode: ScaleBy(0)}},
		{"negative scale factor", Params{Brightness: 1, Contrast: 1, Sharpness: 1, Mode: ScaleBy(-2)}},
		{"nan scale factor", Params{Brightness: 1, Contrast: 1, Sharpness: 1, Mode: ScaleBy(math.NaN())}},
		{"zero fit bounds", Params{Brightness: 1, Contrast: 1, Sharpness: 1, Mode: FitWithin(0, 100)}},
		{"binarize with fit", Params{Brightness: 1, Contrast: 1, Sharpness: 1, Mode: FitWithin(100, 100), Binarize: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidParam) {
				t.Fatalf("expected ErrInvalidParam, got %v", err)
			}
		})
	}
}

func TestStagesOrder(t *testing.T) {
	fit := DefaultParams()
	assertStageNames(t, fit.Stages(), []string{
		StageGrayscale, StageBrightness, StageContrast, StageSharpness, StageResize,
	})

	enlarge := Params{Brightness: 1.1, Contrast: 0.95, Sharpness: 1.15, Mode: ScaleBy(2)}
	assertStageNames(t, enlarge.Stages(), []string{
		StageGrayscale, StageBrightness, StageContrast, StageResize, StageSharpness,
	})

	binarized := enlarge
	binarized.Binarize = true
	binarized.Threshold = 128
	binarized.Dither = true
	assertStageNames(t, binarized.Stages(), []string{
		StageGrayscale, StageBrightness, StageContrast, StageResize, StageSharpness, StageThreshold, StageMono,
	})
}

func assertStageNames(t *testing.T, stages []Stage, want []string) {
	t.Helper()

	if len(stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(stages))
	}
	for i, stage := range stages {
		if stage.Name != want[i] {
			t.Fatalf("stage %d = %s, want %s", i, stage.Name, want[i])
		}
	}
}

func TestOptionsForDestination(t *testing.T) {
	jpg := OptionsForDestination("photos/Scan_001.JPG")
	if jpg.Format != "jpeg" || jpg.Quality != 90 || !jpg.FullChroma || !jpg.Optimize || !jpg.KeepMetadata {
		t.Fatalf("unexpected jpeg directive: %+v", jpg)
	}

	if got := OptionsForDestination("jpeg"); got != jpg {
		t.Fatalf("bare extension should match file lookup, got %+v", got)
	}

	png := OptionsForDestination("out.png")
	if png.Format != "png" || !png.Lossless || !png.Optimize || png.Quality != 0 {
		t.Fatalf("unexpected png directive: %+v", png)
	}

	webp := OptionsForDestination("out.webp")
	if webp.Format != "webp" || webp.Quality != 95 || webp.Effort != 6 {
		t.Fatalf("unexpected webp directive: %+v", webp)
	}

	tiff := OptionsForDestination("scan.TIF")
	if tiff.Format != "tiff" || tiff.Quality != 0 || tiff.Optimize {
		t.Fatalf("expected plain tiff directive, got %+v", tiff)
	}

	unknown := OptionsForDestination("scan.xyz")
	if unknown.Format != "png" {
		t.Fatalf("unknown extension should fall back to png, got %+v", unknown)
	}
}

func TestResizeModeString(t *testing.T) {
	if got := FitWithin(1600, 1200).String(); got != "fit(1600x1200)" {
		t.Fatalf("unexpected fit string: %s", got)
	}
	if got := ScaleBy(2.5).String(); got != "scale(2.5)" {
		t.Fatalf("unexpected scale string: %s", got)
	}
}
