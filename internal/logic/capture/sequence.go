package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/logic/session"
)

// Camera is the subset of a camera session a sequence drives.
type Camera interface {
	Initialize(ctx context.Context, cameraID, preset string) (session.InitResult, error)
	TakePicture(ctx context.Context, path string) error
	StartVideoRecording(ctx context.Context, filePath string) error
	StopVideoRecording(ctx context.Context) error
	Close(ctx context.Context) error
}

// Sequence contains high-level capture scripts (bursts of stills, clips)
// run against one camera session.
type Sequence struct {
	camera Camera
}

func NewSequence(c Camera) *Sequence {
	return &Sequence{camera: c}
}

// ShotParams defines one scripted run.
type ShotParams struct {
	CameraID  string
	Preset    string
	OutputDir string

	Pictures      int           // number of stills to take
	ShotDelay     time.Duration // delay before each still (stabilization)
	ClipDuration  time.Duration // length of the clip recorded after the stills; 0 skips it
	PostShotDelay time.Duration // delay after each still
}

// Result lists the files a run produced.
type Result struct {
	Preview  session.InitResult
	Pictures []string
	Clip     string
}

// PicturePath returns the file name used for still number n (1-based).
func PicturePath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("IMG_%04d.jpg", n))
}

// ClipPath returns the file name used for the recorded clip.
func ClipPath(dir string) string {
	return filepath.Join(dir, "VID_0001.mp4")
}

// Run initializes the camera, takes the stills, records the clip and
// closes the camera again. The camera is closed on every return path.
func (s *Sequence) Run(ctx context.Context, p ShotParams) (Result, error) {
	var res Result

	debug.Section("Initializing Camera")
	preview, err := s.camera.Initialize(ctx, p.CameraID, p.Preset)
	if err != nil {
		return res, fmt.Errorf("initialize camera %s: %w", p.CameraID, err)
	}
	res.Preview = preview
	debug.Live("Preview %dx%d on texture %s", preview.PreviewWidth, preview.PreviewHeight, preview.TextureID)

	defer func() {
		if cerr := s.camera.Close(context.WithoutCancel(ctx)); cerr != nil {
			debug.Error(cerr)
		}
	}()

	for i := 1; i <= p.Pictures; i++ {
		if err := sleep(ctx, p.ShotDelay); err != nil {
			return res, err
		}
		path := PicturePath(p.OutputDir, i)
		debug.Step(i, "picture -> "+path)
		if err := s.camera.TakePicture(ctx, path); err != nil {
			return res, fmt.Errorf("picture %d: %w", i, err)
		}
		res.Pictures = append(res.Pictures, path)
		if err := sleep(ctx, p.PostShotDelay); err != nil {
			return res, err
		}
	}

	if p.ClipDuration <= 0 {
		return res, nil
	}

	path := ClipPath(p.OutputDir)
	debug.Section("Recording Clip")
	if err := s.camera.StartVideoRecording(ctx, path); err != nil {
		return res, fmt.Errorf("start recording: %w", err)
	}
	waitErr := sleep(ctx, p.ClipDuration)
	// stop even when interrupted so the container is finalized
	if err := s.camera.StopVideoRecording(context.WithoutCancel(ctx)); err != nil {
		return res, fmt.Errorf("stop recording: %w", err)
	}
	res.Clip = path
	return res, waitErr
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
