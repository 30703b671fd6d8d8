package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v\n%s", err, spew.Sdump(Defaults()))
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PassConfig)
		field  string
	}{
		{"zero radius", func(c *PassConfig) { c.AmbientOcclusion.Radius = 0 }, "ambient_occlusion.radius"},
		{"negative bias", func(c *PassConfig) { c.AmbientOcclusion.Bias = -0.1 }, "ambient_occlusion.bias"},
		{"kernel too large", func(c *PassConfig) { c.AmbientOcclusion.KernelSize = 33 }, "ambient_occlusion.kernel_size"},
		{"kernel empty", func(c *PassConfig) { c.AmbientOcclusion.KernelSize = 0 }, "ambient_occlusion.kernel_size"},
		{"step iterations", func(c *PassConfig) { c.Reflections.StepIterations = 513 }, "reflections.step_iterations"},
		{"hit tolerance", func(c *PassConfig) { c.Reflections.HitTolerance = 0 }, "reflections.hit_tolerance"},
		{"exposure", func(c *PassConfig) { c.Bloom.Exposure = 1.5 }, "bloom.exposure"},
		{"blur iterations", func(c *PassConfig) { c.Bloom.BlurIterations = 21 }, "bloom.blur_iterations"},
		{"threshold", func(c *PassConfig) { c.Bloom.Threshold = -0.01 }, "bloom.threshold"},
		{"focal depth", func(c *PassConfig) { c.DepthOfField.FocalDepth = 0 }, "depth_of_field.focal_depth"},
		{"sample count", func(c *PassConfig) { c.DepthOfField.SampleCount = 65 }, "depth_of_field.sample_count"},
		{"max blur", func(c *PassConfig) { c.DepthOfField.MaxBlur = 40 }, "depth_of_field.max_blur"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("Validate() = %v, want ErrOutOfRange", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestValidateBoundaries(t *testing.T) {
	cfg := Defaults()
	cfg.Bloom.Exposure = 0
	cfg.Bloom.Threshold = 1
	cfg.Bloom.BlurIterations = 0
	cfg.Reflections.StepIterations = 0
	cfg.DepthOfField.SampleCount = 0
	cfg.DepthOfField.MaxBlur = 0
	cfg.AmbientOcclusion.KernelSize = 32
	if err := cfg.Validate(); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
}

func TestParsePartialDocumentKeepsDefaults(t *testing.T) {
	doc := []byte(`
bloom:
  enabled: false
  threshold: 0.5
depth_of_field:
  enabled: true
`)
	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Defaults()
	want.Bloom.Enabled = false
	want.Bloom.Threshold = 0.5
	want.DepthOfField.Enabled = true
	if cfg != want {
		t.Errorf("Parse mismatch\ngot:  %s\nwant: %s", spew.Sdump(cfg), spew.Sdump(want))
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "bloom:\n  glow: 1\n"},
		{"out of range", "bloom:\n  exposure: 2\n"},
		{"malformed", "bloom: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passes.yaml")
	cfg := Defaults()
	cfg.Reflections.StepIterations = 128
	cfg.Debug.GBufferView = true
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip mismatch\ngot:  %s\nwant: %s", spew.Sdump(got), spew.Sdump(cfg))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s, err := NewStore(Defaults())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	snap := s.Snapshot()
	snap.Bloom.Enabled = false
	if !s.Snapshot().Bloom.Enabled {
		t.Error("mutating a snapshot changed the store")
	}
}

func TestStoreUpdateRejectsInvalid(t *testing.T) {
	s, _ := NewStore(Defaults())
	err := s.Update(func(c *PassConfig) {
		c.Bloom.Threshold = 0.3
		c.Bloom.Exposure = 3
	})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Update = %v, want ErrOutOfRange", err)
	}
	if got := s.Snapshot(); got != Defaults() {
		t.Errorf("rejected update leaked into the store: %s", spew.Sdump(got))
	}
	if err := s.Update(func(c *PassConfig) { c.Bloom.Threshold = 0.3 }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.Snapshot().Bloom.Threshold; got != 0.3 {
		t.Errorf("threshold = %v, want 0.3", got)
	}
}

func TestStoreToggle(t *testing.T) {
	s, _ := NewStore(Defaults())
	for _, e := range []Effect{EffectAmbientOcclusion, EffectReflections, EffectBloom, EffectDepthOfField, EffectGBufferView} {
		before := s.Snapshot().Enabled(e)
		if got := s.Toggle(e); got == before {
			t.Errorf("Toggle(%s) = %v, want %v", e, got, !before)
		}
		if s.Snapshot().Enabled(e) == before {
			t.Errorf("Toggle(%s) did not persist", e)
		}
	}
}

func TestStoreAdjustFocalDepth(t *testing.T) {
	s, _ := NewStore(Defaults())
	if got := s.AdjustFocalDepth(2); got != 3 {
		t.Errorf("AdjustFocalDepth(2) = %v, want 3", got)
	}
	if got := s.AdjustFocalDepth(-100); got != minFocalDepth {
		t.Errorf("AdjustFocalDepth(-100) = %v, want %v", got, minFocalDepth)
	}
	if err := s.Snapshot().Validate(); err != nil {
		t.Errorf("store holds invalid config after scroll: %v", err)
	}
}
