package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/camsession/internal/config"
	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/hw/gpio"
	"github.com/cjeanneret/camsession/internal/hw/tally"
	"github.com/cjeanneret/camsession/internal/logic/capture"
	"github.com/cjeanneret/camsession/internal/logic/session"
	"github.com/cjeanneret/camsession/internal/logic/sizing"
	"github.com/cjeanneret/camsession/internal/web"
)

const maxClip = time.Hour

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	cameraID := flag.String("camera", "", "override camera id")
	preset := flag.String("preset", "", "override resolution preset (low, medium, high)")
	pictures := flag.Int("pictures", 1, "number of pictures to take")
	clip := flag.Duration("clip", 0, "record a clip of this length after the pictures (e.g. 5s)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateCLIOverrides(*preset, *pictures, *clip); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *cameraID, *preset)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", debug.Level())

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing tally lamp")
	lamp, err := tally.NewLamp(gpioDriver, cfg.Tally.Pin)
	if err != nil {
		log.Fatalf("init tally lamp failed: %v", err)
	}
	defer lamp.Off()
	debug.Value("Tally pin", cfg.Tally.Pin)

	debug.Step(3, "Initializing camera platform")
	platform, err := cfg.NewSimulator()
	if err != nil {
		log.Fatalf("init camera platform failed: %v", err)
	}
	if debug.IsEnabled(debug.LevelVerbose) {
		debug.PrintStruct("Recording profile", cfg.Recording)
		debug.PrintStruct("Simulator", cfg.Simulator)
	}

	newSession := func() (*session.Session, error) {
		return newCameraSession(platform, cfg, lamp)
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(broadcaster)))

		srv := web.NewServer(webAddr, broadcaster, newSession)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if err := runOnce(ctx, cfg, newSession, *pictures, *clip); err != nil {
		log.Fatalf("capture failed: %v", err)
	}
}

// newCameraSession creates a session on platform whose state changes drive
// the tally lamp.
func newCameraSession(platform *camera.Simulator, cfg *config.Config, lamp *tally.Lamp) (*session.Session, error) {
	return session.New(session.Options{
		Registry:    platform,
		Targets:     platform,
		Textures:    platform,
		Permissions: platform,
		Display:     platform,
		Profile:     cfg.Recording,
		EnableAudio: cfg.Camera.EnableAudio,
		OnStateChange: func(_, to session.State) {
			if err := lamp.Set(to == session.StateRecording); err != nil {
				debug.Error(err)
			}
		},
	})
}

// runOnce runs the capture sequence on a fresh session and disposes it.
func runOnce(
	ctx context.Context,
	cfg *config.Config,
	newSession func() (*session.Session, error),
	pictures int,
	clip time.Duration,
) error {
	if err := os.MkdirAll(cfg.Defaults.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	sess, err := newSession()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		if err := sess.Dispose(context.WithoutCancel(ctx)); err != nil {
			debug.Error(err)
		}
	}()
	sess.Listen(session.EventSinkFunc(func(e session.Event) {
		if e.Type == session.EventError {
			log.Printf("camera error: %s", e.Description)
		}
	}))

	res, err := capture.NewSequence(sess).Run(ctx, capture.ShotParams{
		CameraID:      cfg.Camera.ID,
		Preset:        cfg.Camera.ResolutionPreset,
		OutputDir:     cfg.Defaults.OutputDir,
		Pictures:      pictures,
		ShotDelay:     cfg.ShotDelay(),
		PostShotDelay: cfg.PostShotDelay(),
		ClipDuration:  clip,
	})
	if err != nil {
		return err
	}

	debug.Summary("Sequence Complete")
	debug.Value("Pictures", len(res.Pictures))
	if res.Clip != "" {
		debug.Value("Clip", res.Clip)
	}
	return nil
}

// validateCLIOverrides checks the CLI values. An empty preset means "use config default".
func validateCLIOverrides(preset string, pictures int, clip time.Duration) error {
	if preset != "" {
		if _, err := sizing.ParsePreset(preset); err != nil {
			return err
		}
	}
	if pictures < 0 || pictures > 1000 {
		return fmt.Errorf("pictures must be between 0 and 1000, got %d", pictures)
	}
	if clip < 0 || clip > maxClip {
		return fmt.Errorf("clip must be between 0 and %s, got %s", maxClip, clip)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-empty values are applied.
func applyOverrides(cfg *config.Config, cameraID, preset string) {
	if cameraID != "" {
		cfg.Camera.ID = cameraID
	}
	if preset != "" {
		cfg.Camera.ResolutionPreset = preset
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
