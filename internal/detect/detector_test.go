package detect

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "hue max above 179",
			mutate:  func(c *Config) { c.HueMax = 200 },
			wantErr: true,
		},
		{
			name:    "hue min above max",
			mutate:  func(c *Config) { c.HueMin = 50; c.HueMax = 10 },
			wantErr: true,
		},
		{
			name:    "negative saturation",
			mutate:  func(c *Config) { c.SaturationMin = -1 },
			wantErr: true,
		},
		{
			name:    "value max above 255",
			mutate:  func(c *Config) { c.ValueMax = 300 },
			wantErr: true,
		},
		{
			name:    "erode iterations too high",
			mutate:  func(c *Config) { c.ErodeIterations = 11 },
			wantErr: true,
		},
		{
			name:    "negative dilate iterations",
			mutate:  func(c *Config) { c.DilateIterations = -1 },
			wantErr: true,
		},
		{
			name:    "min area below one",
			mutate:  func(c *Config) { c.MinArea = 0 },
			wantErr: true,
		},
		{
			name:    "max area below min area",
			mutate:  func(c *Config) { c.MinArea = 100; c.MaxArea = 50 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Apply_Partial(t *testing.T) {
	cfg := DefaultConfig()

	s := Settings{
		HueMax:  intPtr(25),
		MinArea: floatPtr(80),
	}

	got, err := s.Apply(cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if got.HueMax != 25 {
		t.Errorf("HueMax = %d, want 25", got.HueMax)
	}
	if got.MinArea != 80 {
		t.Errorf("MinArea = %v, want 80", got.MinArea)
	}

	// Untouched fields keep their current values.
	if got.HueMin != cfg.HueMin {
		t.Errorf("HueMin changed to %d", got.HueMin)
	}
	if got.SaturationMin != cfg.SaturationMin {
		t.Errorf("SaturationMin changed to %d", got.SaturationMin)
	}
	if got.ErodeIterations != cfg.ErodeIterations {
		t.Errorf("ErodeIterations changed to %d", got.ErodeIterations)
	}
}

func TestSettings_Apply_InvalidRejectedWhole(t *testing.T) {
	// One bad field rejects the whole update, including the valid fields.
	s := Settings{
		HueMax:  intPtr(300),
		MinArea: floatPtr(80),
	}

	if _, err := s.Apply(DefaultConfig()); err == nil {
		t.Fatal("expected error for hue max above 179")
	}
}

func TestDetectedObject_Speed(t *testing.T) {
	d := DetectedObject{}
	d.Velocity.X = 3
	d.Velocity.Y = 4
	if got := d.Speed(); got != 5 {
		t.Errorf("Speed() = %v, want 5", got)
	}
}
