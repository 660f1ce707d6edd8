package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/logic/recorder"
)

func TestVideoRecording_StartStop(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")

	if err := s.StartVideoRecording(ctx, path); err != nil {
		t.Fatalf("StartVideoRecording: %v", err)
	}
	assertState(t, s, StateRecording)

	recs := sim.Recorders()
	if len(recs) != 1 {
		t.Fatalf("recorders = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.State() != camera.RecorderRecording {
		t.Errorf("recorder state = %v, want recording", rec.State())
	}
	if rec.VideoSize() != sz(1440, 1080) {
		t.Errorf("video size = %v, want 1440x1080", rec.VideoSize())
	}
	if rec.OrientationHint() != 90 {
		t.Errorf("orientation hint = %d, want 90", rec.OrientationHint())
	}
	if sim.OpenReaders() != 1 {
		t.Errorf("OpenReaders() = %d, the still target should stay allocated", sim.OpenReaders())
	}

	if err := s.StopVideoRecording(ctx); err != nil {
		t.Fatalf("StopVideoRecording: %v", err)
	}
	waitState(t, s, StatePreviewActive)
	settle(t, s)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if !strings.Contains(string(data), "1440x1080@27") {
		t.Errorf("clip = %q", data)
	}
	if rec.State() != camera.RecorderIdle {
		t.Errorf("recorder state after stop = %v, want idle (reset, not released)", rec.State())
	}
	if sim.OpenSessions() != 1 {
		t.Errorf("OpenSessions() = %d, want the preview session only", sim.OpenSessions())
	}

	// the preview is back: stills work again
	if err := s.TakePicture(ctx, filepath.Join(t.TempDir(), "after.jpg")); err != nil {
		t.Errorf("TakePicture after recording: %v", err)
	}
}

func TestVideoRecording_RecorderReused(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)
	dir := t.TempDir()

	for _, name := range []string{"a.mp4", "b.mp4"} {
		if err := s.StartVideoRecording(ctx, filepath.Join(dir, name)); err != nil {
			t.Fatalf("StartVideoRecording(%s): %v", name, err)
		}
		if err := s.StopVideoRecording(ctx); err != nil {
			t.Fatalf("StopVideoRecording(%s): %v", name, err)
		}
		settle(t, s)
	}
	if n := len(sim.Recorders()); n != 1 {
		t.Errorf("recorders created = %d, want 1", n)
	}
}

func TestStopVideoRecording_NotRecordingIsNoop(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	settle(t, s)

	if err := s.StopVideoRecording(testCtx(t)); err != nil {
		t.Fatalf("StopVideoRecording: %v", err)
	}
	settle(t, s)
	assertState(t, s, StatePreviewActive)
	if sim.OpenDevices() != 1 || sim.OpenSessions() != 1 {
		t.Errorf("devices/sessions = %d/%d, want 1/1", sim.OpenDevices(), sim.OpenSessions())
	}
	if sim.DoubleCloses() != 0 {
		t.Errorf("DoubleCloses() = %d, want 0", sim.DoubleCloses())
	}
	if len(sim.Recorders()) != 0 {
		t.Error("no recorder should be created")
	}
}

func TestStopVideoRecording_NeverInitialized(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)
	if err := s.StopVideoRecording(testCtx(t)); err != nil {
		t.Fatalf("StopVideoRecording: %v", err)
	}
	assertState(t, s, StateClosed)
}

func TestStartVideoRecording_FileExists(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	settle(t, s)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.StartVideoRecording(testCtx(t), path)
	if !errors.Is(err, ErrFileExists) {
		t.Fatalf("err = %v, want ErrFileExists", err)
	}
	assertState(t, s, StatePreviewActive)
	if sim.OpenDevices() != 1 || sim.OpenSessions() != 1 {
		t.Errorf("devices/sessions = %d/%d, want 1/1", sim.OpenDevices(), sim.OpenSessions())
	}
	if len(sim.Recorders()) != 0 {
		t.Error("no recorder should be created")
	}
	// the preview session is untouched, so stills still work
	if err := s.TakePicture(testCtx(t), filepath.Join(t.TempDir(), "a.jpg")); err != nil {
		t.Errorf("TakePicture: %v", err)
	}
}

func TestStartVideoRecording_NoDevice(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)
	err := s.StartVideoRecording(testCtx(t), filepath.Join(t.TempDir(), "clip.mp4"))
	if !errors.Is(err, ErrConfigureFailed) {
		t.Errorf("err = %v, want ErrConfigureFailed", err)
	}
}

func TestStartVideoRecording_PrepareFailure(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)

	cause := errors.New("encoder unavailable")
	sim.FailPrepare(cause)
	err := s.StartVideoRecording(ctx, filepath.Join(t.TempDir(), "clip.mp4"))
	if !errors.Is(err, ErrVideoRecordingFailed) {
		t.Fatalf("err = %v, want ErrVideoRecordingFailed", err)
	}
	if !errors.Is(err, recorder.ErrIO) || !errors.Is(err, cause) {
		t.Errorf("err = %v, want it to wrap recorder.ErrIO and the cause", err)
	}

	settle(t, s)
	assertState(t, s, StatePreviewActive)
	if sim.OpenSessions() != 1 {
		t.Errorf("OpenSessions() = %d, want the preview restored", sim.OpenSessions())
	}
	sim.FailPrepare(nil)
	if err := s.StartVideoRecording(ctx, filepath.Join(t.TempDir(), "retry.mp4")); err != nil {
		t.Errorf("retry StartVideoRecording: %v", err)
	}
}

func TestStartVideoRecording_ConfigureFailure(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)

	sim.FailConfigure(true)
	err := s.StartVideoRecording(ctx, filepath.Join(t.TempDir(), "clip.mp4"))
	if !errors.Is(err, ErrConfigureFailed) {
		t.Fatalf("err = %v, want ErrConfigureFailed", err)
	}
	if rec := sim.Recorders()[0]; rec.State() == camera.RecorderRecording {
		t.Error("recorder started despite the configure failure")
	}
}

func TestStartVideoRecording_DeviceClosedDuringConfigure(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)

	sim.Hold(true)
	p := newPromise[struct{}]()
	s.exec.post(func() { s.startVideoRecording(p, filepath.Join(t.TempDir(), "clip.mp4")) })
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	sim.Hold(false)
	sim.Flush() // the late OnConfigured for the recording session
	settle(t, s)

	if _, err := p.wait(ctx); !errors.Is(err, ErrConfigureFailed) {
		t.Errorf("err = %v, want ErrConfigureFailed", err)
	}
	if rec := sim.Recorders()[0]; rec.State() == camera.RecorderRecording {
		t.Error("recorder started after the device was closed")
	}
	assertState(t, s, StateClosed)
	if sim.OpenSessions() != 0 {
		t.Errorf("OpenSessions() = %d, want 0", sim.OpenSessions())
	}
}

func TestStopVideoRecording_StopFailure(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)

	if err := s.StartVideoRecording(ctx, filepath.Join(t.TempDir(), "clip.mp4")); err != nil {
		t.Fatalf("StartVideoRecording: %v", err)
	}
	sim.FailStop(errors.New("stop failed"))
	if err := s.StopVideoRecording(ctx); !errors.Is(err, ErrVideoRecordingFailed) {
		t.Fatalf("err = %v, want ErrVideoRecordingFailed", err)
	}
	waitState(t, s, StatePreviewActive)
}

func TestStartVideoRecording_WithoutAudio(t *testing.T) {
	sim := newSimulator()
	s, err := New(Options{Registry: sim, Targets: sim, Textures: sim, Permissions: sim, Display: sim})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Dispose(context.Background()) })
	ctx := testCtx(t)
	if _, err := s.Initialize(ctx, "0", "low"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.StartVideoRecording(ctx, filepath.Join(t.TempDir(), "clip.mp4")); err != nil {
		t.Fatalf("StartVideoRecording: %v", err)
	}
	for _, call := range sim.Recorders()[0].Calls() {
		if strings.HasPrefix(call, "SetAudio") {
			t.Errorf("audio call %s made with audio disabled", call)
		}
	}
}
