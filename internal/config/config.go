package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/logic/recorder"
	"github.com/cjeanneret/camsession/internal/logic/sizing"
)

// CameraConfig selects the camera a session opens and how it is oriented.
type CameraConfig struct {
	ID               string `yaml:"id"`                // camera identifier, e.g. "0"
	ResolutionPreset string `yaml:"resolution_preset"` // low, medium or high
	EnableAudio      bool   `yaml:"enable_audio"`      // record the microphone track
	DisplayRotation  int    `yaml:"display_rotation"`  // 0, 90, 180 or 270
}

// TallyConfig describes the recording tally lamp.
type TallyConfig struct {
	Pin int `yaml:"pin"` // BCM pin driven HIGH while recording. 0 = no lamp.
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel      int    `yaml:"debug_level"`        // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO        bool   `yaml:"mock_gpio"`          // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	OutputDir       string `yaml:"output_dir"`         // where pictures and clips are written
	ShotDelayMs     int    `yaml:"shot_delay_ms"`      // delay before each still (ms)
	PostShotDelayMs int    `yaml:"post_shot_delay_ms"` // delay after each still (ms)
}

// SimCameraConfig describes one camera of the simulated platform.
type SimCameraConfig struct {
	ID                string   `yaml:"id"`
	Facing            string   `yaml:"facing"`             // front, back or external
	SensorOrientation int      `yaml:"sensor_orientation"` // degrees
	StillSizes        []string `yaml:"still_sizes"`        // "WxH", hardware order
	PreviewSizes      []string `yaml:"preview_sizes"`      // "WxH", hardware order
}

// SimulatorConfig configures the in-memory camera platform.
type SimulatorConfig struct {
	GrantCamera      bool              `yaml:"grant_camera"`
	GrantMicrophone  bool              `yaml:"grant_microphone"`
	AnswerCamera     *bool             `yaml:"answer_camera,omitempty"`     // prompt answer, default true
	AnswerMicrophone *bool             `yaml:"answer_microphone,omitempty"` // prompt answer, default true
	Cameras          []SimCameraConfig `yaml:"cameras"`
}

// Config aggregates all application configuration.
type Config struct {
	Camera    CameraConfig     `yaml:"camera"`
	Recording recorder.Profile `yaml:"recording"`
	Tally     TallyConfig      `yaml:"tally"`
	Defaults  DefaultsConfig   `yaml:"defaults"`
	Simulator SimulatorConfig  `yaml:"simulator"`
}

// ValidateConfigPath only accepts .yaml files located directly in a
// directory named "configs".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	if strings.Contains(filepath.ToSlash(path), "../") {
		return fmt.Errorf("config path must not contain traversal: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if cfg.Camera.ID == "" {
		cfg.Camera.ID = "0"
	}
	if cfg.Camera.ResolutionPreset == "" {
		cfg.Camera.ResolutionPreset = sizing.PresetHigh.String()
	}
	if _, err := sizing.ParsePreset(cfg.Camera.ResolutionPreset); err != nil {
		return nil, fmt.Errorf("camera.resolution_preset: %w", err)
	}
	switch cfg.Camera.DisplayRotation {
	case 0, 90, 180, 270:
	default:
		return nil, fmt.Errorf("camera.display_rotation must be 0, 90, 180 or 270, got %d", cfg.Camera.DisplayRotation)
	}

	cfg.Recording = cfg.Recording.WithDefaults()
	if cfg.Recording.VideoFrameRate < 0 || cfg.Recording.VideoBitRate < 0 || cfg.Recording.AudioBitRate < 0 {
		return nil, errors.New("recording rates must be >= 0")
	}

	if cfg.Tally.Pin < 0 {
		return nil, fmt.Errorf("tally.pin must be >= 0, got %d", cfg.Tally.Pin)
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}
	if cfg.Defaults.OutputDir == "" {
		cfg.Defaults.OutputDir = "captures"
	}
	if cfg.Defaults.ShotDelayMs <= 0 {
		cfg.Defaults.ShotDelayMs = 300 // let auto exposure settle
	}
	if cfg.Defaults.PostShotDelayMs < 0 {
		cfg.Defaults.PostShotDelayMs = 0
	}

	for i, c := range cfg.Simulator.Cameras {
		if c.ID == "" {
			return nil, fmt.Errorf("simulator.cameras[%d].id is required", i)
		}
		if _, err := c.Descriptor(); err != nil {
			return nil, fmt.Errorf("simulator.cameras[%d]: %w", i, err)
		}
	}

	return &cfg, nil
}

// ShotDelay returns the delay before each still.
func (c *Config) ShotDelay() time.Duration {
	return time.Duration(c.Defaults.ShotDelayMs) * time.Millisecond
}

// PostShotDelay returns the delay after each still.
func (c *Config) PostShotDelay() time.Duration {
	return time.Duration(c.Defaults.PostShotDelayMs) * time.Millisecond
}

// Rotation returns the configured display rotation.
func (c *Config) Rotation() camera.Rotation {
	return camera.Rotation(c.Camera.DisplayRotation)
}

// ParseSize parses "WxH" (e.g. "1920x1080") into a Size.
func ParseSize(s string) (camera.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return camera.Size{}, fmt.Errorf("size %q: want WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return camera.Size{}, fmt.Errorf("size %q: width: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return camera.Size{}, fmt.Errorf("size %q: height: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return camera.Size{}, fmt.Errorf("size %q: dimensions must be > 0", s)
	}
	return camera.Size{Width: width, Height: height}, nil
}

func parseSizes(list []string) ([]camera.Size, error) {
	out := make([]camera.Size, 0, len(list))
	for _, s := range list {
		size, err := ParseSize(s)
		if err != nil {
			return nil, err
		}
		out = append(out, size)
	}
	return out, nil
}

// Descriptor converts a simulated camera entry into a camera descriptor.
func (c SimCameraConfig) Descriptor() (camera.Descriptor, error) {
	facing := camera.FacingBack
	if c.Facing != "" {
		f, err := camera.ParseFacing(c.Facing)
		if err != nil {
			return camera.Descriptor{}, err
		}
		facing = f
	}
	switch c.SensorOrientation {
	case 0, 90, 180, 270:
	default:
		return camera.Descriptor{}, fmt.Errorf("sensor_orientation must be 0, 90, 180 or 270, got %d", c.SensorOrientation)
	}
	stills, err := parseSizes(c.StillSizes)
	if err != nil {
		return camera.Descriptor{}, fmt.Errorf("still_sizes: %w", err)
	}
	previews, err := parseSizes(c.PreviewSizes)
	if err != nil {
		return camera.Descriptor{}, fmt.Errorf("preview_sizes: %w", err)
	}
	return camera.Descriptor{
		ID:                c.ID,
		Facing:            facing,
		SensorOrientation: c.SensorOrientation,
		OutputSizes: map[camera.OutputClass][]camera.Size{
			camera.OutputStill:   stills,
			camera.OutputPreview: previews,
		},
	}, nil
}

// NewSimulator builds the simulated platform described by the simulator section.
func (c *Config) NewSimulator() (*camera.Simulator, error) {
	descs := make([]camera.Descriptor, 0, len(c.Simulator.Cameras))
	for _, sc := range c.Simulator.Cameras {
		d, err := sc.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("simulator camera %s: %w", sc.ID, err)
		}
		descs = append(descs, d)
	}
	sim := camera.NewSimulator(descs...)
	sim.Grant(camera.PermissionCamera, c.Simulator.GrantCamera)
	sim.Grant(camera.PermissionMicrophone, c.Simulator.GrantMicrophone)
	if a := c.Simulator.AnswerCamera; a != nil {
		sim.AnswerPrompt(camera.PermissionCamera, *a)
	}
	if a := c.Simulator.AnswerMicrophone; a != nil {
		sim.AnswerPrompt(camera.PermissionMicrophone, *a)
	}
	sim.SetRotation(c.Rotation())
	return sim, nil
}
