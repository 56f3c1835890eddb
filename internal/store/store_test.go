package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/strikepoint/internal/calibration"
	"github.com/ayusman/strikepoint/internal/detect"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

func TestHitRepository_CreateAndRecent(t *testing.T) {
	st := newTestStore(t)
	hits := st.Hits()

	for i := 0; i < 3; i++ {
		h := &Hit{
			X:         0.1 * float64(i+1),
			Y:         0.5,
			Timestamp: float64(i),
			Mode:      "stationary",
		}
		if err := hits.Create(h); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if h.ID == "" {
			t.Error("Create() left ID empty")
		}
		// Distinct created_at values keep the ordering deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := hits.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d hits, want 2", len(recent))
	}

	// Newest first.
	if recent[0].Timestamp != 2 || recent[1].Timestamp != 1 {
		t.Errorf("got timestamps %v, %v; want 2, 1", recent[0].Timestamp, recent[1].Timestamp)
	}
	if recent[0].Mode != "stationary" {
		t.Errorf("mode = %q, want stationary", recent[0].Mode)
	}

	n, err := hits.Count()
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestHitRepository_Clear(t *testing.T) {
	st := newTestStore(t)
	hits := st.Hits()

	if err := hits.Create(&Hit{X: 0.5, Y: 0.5, Timestamp: 1, Mode: "stuck"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := hits.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	n, err := hits.Count()
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 0 {
		t.Errorf("Count() after Clear = %d, want 0", n)
	}
}

func TestProfileRepository_SaveGetUpdate(t *testing.T) {
	st := newTestStore(t)
	profiles := st.Profiles()

	cfg := detect.DefaultConfig()
	p := &ColorProfile{Name: "red-darts", Config: cfg}
	if err := profiles.Save(p); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := profiles.GetByName("red-darts")
	if err != nil {
		t.Fatalf("GetByName() error: %v", err)
	}
	if got.Config != cfg {
		t.Errorf("config = %+v, want %+v", got.Config, cfg)
	}

	// Saving the same name again updates in place.
	cfg.HueMax = 25
	if err := profiles.Save(&ColorProfile{Name: "red-darts", Config: cfg}); err != nil {
		t.Fatalf("Save() update error: %v", err)
	}

	got, err = profiles.GetByName("red-darts")
	if err != nil {
		t.Fatalf("GetByName() error: %v", err)
	}
	if got.Config.HueMax != 25 {
		t.Errorf("HueMax = %d, want 25 after update", got.Config.HueMax)
	}

	list, err := profiles.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() returned %d profiles, want 1", len(list))
	}
}

func TestProfileRepository_InvalidConfigRejected(t *testing.T) {
	st := newTestStore(t)

	cfg := detect.DefaultConfig()
	cfg.HueMax = 300
	err := st.Profiles().Save(&ColorProfile{Name: "bad", Config: cfg})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}

	if _, err := st.Profiles().GetByName("bad"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName() error = %v, want ErrNotFound", err)
	}
}

func TestProfileRepository_Delete(t *testing.T) {
	st := newTestStore(t)
	profiles := st.Profiles()

	if err := profiles.Save(&ColorProfile{Name: "yellow-balls", Config: detect.DefaultConfig()}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := profiles.Delete("yellow-balls"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := profiles.Delete("yellow-balls"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestCalibrationRepository_CreateLatestPrune(t *testing.T) {
	st := newTestStore(t)
	calibrations := st.Calibrations()

	if _, err := calibrations.Latest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty table error = %v, want ErrNotFound", err)
	}

	for i := 0; i < 3; i++ {
		data := &calibration.Data{
			Version:             "1.0",
			CameraResolution:    calibration.Resolution{Width: 1280, Height: 720},
			ProjectorResolution: calibration.Resolution{Width: 1920, Height: 1080},
			HomographyCameraToProjector: calibration.Homography{
				{1.5, 0, 0}, {0, 1.5, 0}, {0, 0, 1},
			},
			Quality:     calibration.Quality{ReprojectionErrorRMS: float64(i), InlierRatio: 0.9},
			MarkerCount: 8 + i,
		}
		if _, err := calibrations.Create(data); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	latest, err := calibrations.Latest()
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if latest.RMSError != 2 || latest.MarkerCount != 10 {
		t.Errorf("latest rms=%v markers=%d, want 2 and 10", latest.RMSError, latest.MarkerCount)
	}
	// The full document round-trips.
	if latest.Data.ProjectorResolution.Width != 1920 {
		t.Errorf("document projector width = %d, want 1920", latest.Data.ProjectorResolution.Width)
	}

	if err := calibrations.Prune(1); err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	var n int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM calibrations`).Scan(&n); err != nil {
		t.Fatalf("count query error: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d records after Prune(1), want 1", n)
	}
}
