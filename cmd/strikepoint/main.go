package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/strikepoint/internal/backend"
	"github.com/ayusman/strikepoint/internal/calibration"
	"github.com/ayusman/strikepoint/internal/capture"
	"github.com/ayusman/strikepoint/internal/detect"
	"github.com/ayusman/strikepoint/internal/server"
	"github.com/ayusman/strikepoint/internal/store"
	"github.com/ayusman/strikepoint/internal/track"
	"github.com/ayusman/strikepoint/internal/tray"
)

func main() {
	fmt.Println("Strikepoint - Projectile Impact Detection")

	cameraID := flag.Int("camera", 0, "camera device id")
	mode := flag.String("mode", "trajectory_change", "impact mode: trajectory_change, stationary, or stuck")
	calibPath := flag.String("calibration", "", "path to a calibration JSON file")
	profile := flag.String("profile", "", "named color profile to load from the store")
	sample := flag.String("sample", "", "sample projectile colors and save them as the named profile, then exit")
	dbPath := flag.String("db", "", "path to the SQLite database (default ~/.strikepoint/strikepoint.db)")
	addr := flag.String("addr", ":8080", "debug HTTP listen address")
	debug := flag.Bool("debug", false, "start with the debug overlay enabled")
	flag.Parse()

	st, err := openStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	if *sample != "" {
		if err := runColorSampling(*cameraID, st, *sample); err != nil {
			log.Fatalf("Color sampling failed: %v", err)
		}
		return
	}

	detectorConfig := detect.DefaultConfig()
	if *profile != "" {
		p, err := st.Profiles().GetByName(*profile)
		if err != nil {
			log.Fatalf("Failed to load color profile %q: %v", *profile, err)
		}
		detectorConfig = p.Config
		fmt.Printf("Loaded color profile %q\n", p.Name)
	}

	detector, err := detect.NewColorBlobDetector(detectorConfig)
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}
	defer detector.Close()

	trackerConfig := track.DefaultConfig()
	trackerConfig.Mode = track.Mode(*mode)
	tracker, err := track.New(trackerConfig)
	if err != nil {
		log.Fatalf("Failed to create tracker: %v", err)
	}

	var calib *calibration.Manager
	if *calibPath != "" {
		calib = calibration.NewManager()
		if err := calib.LoadFile(*calibPath); err != nil {
			log.Fatalf("Failed to load calibration: %v", err)
		}
		if q, err := calib.Quality(); err == nil && !q.Acceptable() {
			log.Printf("Calibration quality is poor (rms %.2f, inlier ratio %.2f); consider recalibrating",
				q.ReprojectionErrorRMS, q.InlierRatio)
		}
		archiveCalibration(st, calib)
	} else {
		fmt.Println("No calibration file; using linear coordinate scaling")
	}

	camera := capture.NewCamera(*cameraID)
	if err := camera.Open(); err != nil {
		log.Fatalf("Failed to open camera %d: %v", *cameraID, err)
	}
	defer camera.Close()

	b := backend.New(backend.Config{
		Camera:      camera,
		Detector:    detector,
		Tracker:     tracker,
		Calibration: calib,
		Store:       st,
	})
	b.SetDebugMode(*debug)

	srv := server.New(server.Config{Store: st, Backend: b})
	go func() {
		fmt.Printf("Debug server listening on %s\n", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Printf("Debug server stopped: %v", err)
		}
	}()

	// systray must run on the main goroutine.
	t := tray.New()
	t.OnToggle(b.SetEnabled)
	t.OnDebugToggle(b.SetDebugMode)
	t.OnResetRound(b.ResetRound)

	stopCh := make(chan struct{})
	t.OnQuit(func() {
		close(stopCh)
	})

	go runPollLoop(b, t, camera, stopCh)

	t.Run()
}

// runPollLoop drives the backend at the camera frame rate until stopCh
// closes, mirroring hits into the tray menu.
func runPollLoop(b *backend.Backend, t *tray.Tray, camera capture.Camera, stopCh <-chan struct{}) {
	fps := camera.FPS()
	if fps <= 0 {
		fps = 30
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			for _, hit := range b.Poll() {
				log.Printf("Hit at (%.3f, %.3f) t=%.3f", hit.X, hit.Y, hit.Timestamp)
				t.AddHit(fmt.Sprintf("(%.2f, %.2f)", hit.X, hit.Y))
			}
		}
	}
}

// runColorSampling runs the interactive color setup: the operator throws a
// few projectiles across the camera's view, and the sampler derives a
// detector color range from the moving blobs it sees. The result is saved
// as a named profile for later runs.
func runColorSampling(cameraID int, st *store.Store, name string) error {
	const wantSamples = 5

	camera := capture.NewCamera(cameraID)
	if err := camera.Open(); err != nil {
		return fmt.Errorf("open camera %d: %w", cameraID, err)
	}
	defer camera.Close()

	sampler := detect.NewColorSampler()
	defer sampler.Close()

	fmt.Printf("Sampling colors for profile %q: throw projectiles across the camera view\n", name)

	start := time.Now()
	for sampler.Count() < wantSamples {
		if time.Since(start) > 60*time.Second {
			return fmt.Errorf("timed out with %d of %d samples", sampler.Count(), wantSamples)
		}

		frame, err := camera.ReadFrame()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		count, sampled := sampler.Sample(frame, time.Since(start).Seconds())
		frame.Close()
		if sampled {
			fmt.Printf("Sample %d/%d collected\n", count, wantSamples)
		}
	}

	settings, ok := sampler.Settings()
	if !ok {
		return fmt.Errorf("not enough samples collected")
	}
	cfg, err := settings.Apply(detect.DefaultConfig())
	if err != nil {
		return fmt.Errorf("derived settings invalid: %w", err)
	}

	if err := st.Profiles().Save(&store.ColorProfile{Name: name, Config: cfg}); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	fmt.Printf("Saved color profile %q (hue %d-%d)\n", name, cfg.HueMin, cfg.HueMax)
	return nil
}

// archiveCalibration keeps a short history of loaded calibrations in the
// store so a regression after recalibrating can be diagnosed.
func archiveCalibration(st *store.Store, calib *calibration.Manager) {
	data, err := calib.Data()
	if err != nil {
		return
	}
	if _, err := st.Calibrations().Create(data); err != nil {
		log.Printf("Failed to archive calibration: %v", err)
		return
	}
	if err := st.Calibrations().Prune(10); err != nil {
		log.Printf("Failed to prune calibration history: %v", err)
	}
}

// openStore opens the SQLite store at path, defaulting to
// ~/.strikepoint/strikepoint.db.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		dbDir := filepath.Join(homeDir, ".strikepoint")
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path = filepath.Join(dbDir, "strikepoint.db")
	}

	return store.New(path)
}
