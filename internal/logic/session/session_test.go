package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/camsession/internal/hw/camera"
)

// ---------- harness ----------

func sz(w, h int) camera.Size { return camera.Size{Width: w, Height: h} }

// backCamera resolves with preset "low" to capture 4032x3024,
// preview 640x480 and video 1440x1080.
func backCamera() camera.Descriptor {
	return camera.Descriptor{
		ID:                "0",
		Facing:            camera.FacingBack,
		SensorOrientation: 90,
		OutputSizes: map[camera.OutputClass][]camera.Size{
			camera.OutputStill:   {sz(4032, 3024), sz(1920, 1080)},
			camera.OutputPreview: {sz(1920, 1080), sz(1440, 1080), sz(1280, 960), sz(640, 480)},
		},
	}
}

func frontCamera() camera.Descriptor {
	d := backCamera()
	d.ID = "1"
	d.Facing = camera.FacingFront
	d.SensorOrientation = 270
	return d
}

// eventLog is an EventSink recording everything it receives.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Send(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) has(e Event) bool {
	for _, got := range l.snapshot() {
		if got == e {
			return true
		}
	}
	return false
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newSimulator returns a simulator with both cameras and all permissions granted.
func newSimulator() *camera.Simulator {
	sim := camera.NewSimulator(backCamera(), frontCamera())
	sim.Grant(camera.PermissionCamera, true)
	sim.Grant(camera.PermissionMicrophone, true)
	return sim
}

func newTestSession(t *testing.T, sim *camera.Simulator) (*Session, *eventLog) {
	t.Helper()
	s, err := New(Options{
		Registry:    sim,
		Targets:     sim,
		Textures:    sim,
		Permissions: sim,
		Display:     sim,
		EnableAudio: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := &eventLog{}
	s.Listen(events)
	t.Cleanup(func() { _ = s.Dispose(context.Background()) })
	return s, events
}

// initialized returns a session showing the preview of camera "0".
func initialized(t *testing.T, sim *camera.Simulator) (*Session, *eventLog) {
	t.Helper()
	s, events := newTestSession(t, sim)
	if _, err := s.Initialize(testCtx(t), "0", "low"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s, events
}

// waitState polls until the session reaches want.
func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	ctx := testCtx(t)
	for {
		got, err := s.State(ctx)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		if got == want {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("state = %v, want %v", got, want)
		case <-time.After(time.Millisecond):
		}
	}
}

// settle waits until work queued on the control goroutine, including work
// queued by that work, has run.
func settle(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 4; i++ {
		if _, err := s.State(testCtx(t)); err != nil {
			t.Fatalf("State: %v", err)
		}
	}
}

func assertState(t *testing.T, s *Session, want State) {
	t.Helper()
	got, err := s.State(testCtx(t))
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got != want {
		t.Errorf("state = %v, want %v", got, want)
	}
}

// ---------- construction ----------

func TestNew_RequiresCapabilities(t *testing.T) {
	sim := newSimulator()
	cases := map[string]Options{
		"registry":    {Targets: sim, Textures: sim, Permissions: sim, Display: sim},
		"targets":     {Registry: sim, Textures: sim, Permissions: sim, Display: sim},
		"textures":    {Registry: sim, Targets: sim, Permissions: sim, Display: sim},
		"permissions": {Registry: sim, Targets: sim, Textures: sim, Display: sim},
		"display":     {Registry: sim, Targets: sim, Textures: sim, Permissions: sim},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(opts); err == nil {
				t.Errorf("New without %s should fail", name)
			}
		})
	}
}

// ---------- initialize ----------

func TestInitialize_StartsPreview(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)

	res, err := s.Initialize(testCtx(t), "0", "low")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if res.PreviewWidth != 640 || res.PreviewHeight != 480 {
		t.Errorf("preview = %dx%d, want 640x480", res.PreviewWidth, res.PreviewHeight)
	}
	if res.TextureID == "" {
		t.Error("TextureID is empty")
	}
	assertState(t, s, StatePreviewActive)
	if sim.OpenDevices() != 1 || sim.OpenSessions() != 1 || sim.OpenReaders() != 1 {
		t.Errorf("devices/sessions/readers = %d/%d/%d, want 1/1/1",
			sim.OpenDevices(), sim.OpenSessions(), sim.OpenReaders())
	}
	if sim.Prompts() != 0 {
		t.Errorf("Prompts() = %d, want 0 when already granted", sim.Prompts())
	}

	sizes, err := s.Sizes(testCtx(t))
	if err != nil {
		t.Fatalf("Sizes: %v", err)
	}
	if sizes.Capture != sz(4032, 3024) || sizes.Video != sz(1440, 1080) {
		t.Errorf("sizes = %+v", sizes)
	}
}

func TestInitialize_InvalidArguments(t *testing.T) {
	cases := []struct {
		name, camera, preset string
	}{
		{"unknown preset", "0", "ultra"},
		{"unknown camera", "9", "low"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := newSimulator()
			s, _ := newTestSession(t, sim)
			_, err := s.Initialize(testCtx(t), tc.camera, tc.preset)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
			assertState(t, s, StateClosed)
			if sim.OpenDevices() != 0 {
				t.Errorf("OpenDevices() = %d, want 0", sim.OpenDevices())
			}
		})
	}
}

func TestInitialize_InvalidArgumentKeepsRunningCamera(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)

	if _, err := s.Initialize(testCtx(t), "0", "ultra"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	assertState(t, s, StatePreviewActive)
	if sim.OpenDevices() != 1 {
		t.Errorf("OpenDevices() = %d, want 1", sim.OpenDevices())
	}
}

func TestInitialize_FallbackSizes(t *testing.T) {
	sim := newSimulator()
	d := backCamera()
	// nothing in the preview table has the 4:3 capture ratio
	d.OutputSizes[camera.OutputPreview] = []camera.Size{sz(1280, 720), sz(1920, 1080)}
	sim.AddCamera(d)
	s, _ := newTestSession(t, sim)

	res, err := s.Initialize(testCtx(t), "0", "low")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if res.PreviewWidth != 1280 || res.PreviewHeight != 720 {
		t.Errorf("preview = %dx%d, want first entry 1280x720", res.PreviewWidth, res.PreviewHeight)
	}
	sizes, _ := s.Sizes(testCtx(t))
	if sizes.Preview != sz(1280, 720) || sizes.Video != sz(1280, 720) {
		t.Errorf("preview/video = %v/%v, want 1280x720 for both", sizes.Preview, sizes.Video)
	}
}

func TestInitialize_TwiceReplacesDevice(t *testing.T) {
	sim := newSimulator()
	s, events := initialized(t, sim)

	if _, err := s.Initialize(testCtx(t), "1", "medium"); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	settle(t, s)
	if sim.OpenDevices() != 1 {
		t.Errorf("OpenDevices() = %d, want 1", sim.OpenDevices())
	}
	if sim.LiveTextures() != 1 {
		t.Errorf("LiveTextures() = %d, want the texture to be reused", sim.LiveTextures())
	}
	if !events.has(Event{Type: EventCameraClosing}) {
		t.Error("closing the first camera should emit cameraClosing")
	}
}

func TestInitialize_PermissionPromptGranted(t *testing.T) {
	sim := camera.NewSimulator(backCamera())
	s, _ := newTestSession(t, sim)

	if _, err := s.Initialize(testCtx(t), "0", "low"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if sim.Prompts() != 1 {
		t.Errorf("Prompts() = %d, want 1", sim.Prompts())
	}
	assertState(t, s, StatePreviewActive)
}

func TestInitialize_PermissionDenied(t *testing.T) {
	cases := []struct {
		name    string
		deny    camera.Permission
		message string
	}{
		{"camera", camera.PermissionCamera, msgCameraNotGranted},
		{"microphone", camera.PermissionMicrophone, msgAudioNotGranted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := camera.NewSimulator(backCamera())
			sim.AnswerPrompt(tc.deny, false)
			s, _ := newTestSession(t, sim)

			_, err := s.Initialize(testCtx(t), "0", "low")
			if !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("err = %v, want ErrPermissionDenied", err)
			}
			var serr *Error
			if !errors.As(err, &serr) || serr.Message != tc.message {
				t.Errorf("message = %v, want %q", err, tc.message)
			}
			assertState(t, s, StateClosed)
			if sim.OpenDevices() != 0 {
				t.Errorf("OpenDevices() = %d, want 0", sim.OpenDevices())
			}
		})
	}
}

func TestInitialize_PermissionRequestInProgress(t *testing.T) {
	sim := camera.NewSimulator(backCamera())
	s, _ := newTestSession(t, sim)
	ctx := testCtx(t)

	sim.Hold(true)
	first := newPromise[InitResult]()
	s.exec.post(func() { s.initialize(first, "0", "low") })

	_, err := s.Initialize(ctx, "0", "low")
	if !errors.Is(err, ErrPermissionRequestInProgress) {
		t.Fatalf("concurrent Initialize err = %v, want ErrPermissionRequestInProgress", err)
	}

	sim.Hold(false)
	sim.Flush()
	if _, err := first.wait(ctx); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if sim.Prompts() != 1 {
		t.Errorf("Prompts() = %d, want 1", sim.Prompts())
	}
}

func TestInitialize_DeviceOpenError(t *testing.T) {
	sim := newSimulator()
	sim.FailOpen(camera.ErrorCameraInUse)
	s, events := newTestSession(t, sim)

	_, err := s.Initialize(testCtx(t), "0", "low")
	if !errors.Is(err, ErrCameraAccess) {
		t.Fatalf("err = %v, want ErrCameraAccess", err)
	}
	want := "The camera device is in use already."
	var serr *Error
	if errors.As(err, &serr) && serr.Message != want {
		t.Errorf("message = %q, want %q", serr.Message, want)
	}
	settle(t, s)
	if !events.has(Event{Type: EventError, Description: want}) {
		t.Errorf("events = %v, want an error event", events.snapshot())
	}
	assertState(t, s, StateClosed)
	if sim.OpenDevices() != 0 || sim.OpenReaders() != 0 {
		t.Errorf("devices/readers = %d/%d, want 0/0", sim.OpenDevices(), sim.OpenReaders())
	}
}

func TestInitialize_OpenRefusedSynchronously(t *testing.T) {
	sim := newSimulator()
	sim.FailOpenSync(errors.New("camera service unavailable"))
	s, _ := newTestSession(t, sim)

	if _, err := s.Initialize(testCtx(t), "0", "low"); !errors.Is(err, ErrCameraAccess) {
		t.Fatalf("err = %v, want ErrCameraAccess", err)
	}
	assertState(t, s, StateClosed)
	if sim.OpenReaders() != 0 {
		t.Errorf("OpenReaders() = %d, want 0", sim.OpenReaders())
	}
}

func TestInitialize_PreviewConfigureFailure(t *testing.T) {
	sim := newSimulator()
	sim.FailConfigure(true)
	s, _ := newTestSession(t, sim)

	_, err := s.Initialize(testCtx(t), "0", "low")
	if !errors.Is(err, ErrCameraAccess) {
		t.Fatalf("err = %v, want ErrCameraAccess", err)
	}
	var serr *Error
	if errors.As(err, &serr) && serr.Message != msgPreviewConfigFailed {
		t.Errorf("message = %q, want %q", serr.Message, msgPreviewConfigFailed)
	}
	assertState(t, s, StateClosed)
	if sim.OpenDevices() != 0 {
		t.Errorf("OpenDevices() = %d, want 0", sim.OpenDevices())
	}
}

// ---------- stale callbacks ----------

func TestStaleOpenedCallbackClosesDevice(t *testing.T) {
	sim := newSimulator()
	s, events := newTestSession(t, sim)
	ctx := testCtx(t)

	sim.Hold(true)
	p := newPromise[InitResult]()
	s.exec.post(func() { s.initialize(p, "0", "low") })
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.wait(ctx); !errors.Is(err, ErrCameraAccess) {
		t.Errorf("superseded Initialize err = %v, want ErrCameraAccess", err)
	}

	sim.Hold(false)
	sim.Flush()
	settle(t, s)

	assertState(t, s, StateClosed)
	if sim.OpenDevices() != 0 {
		t.Errorf("OpenDevices() = %d, want the late device closed", sim.OpenDevices())
	}
	if sim.DoubleCloses() != 0 {
		t.Errorf("DoubleCloses() = %d, want 0", sim.DoubleCloses())
	}
	if events.has(Event{Type: EventCameraClosing}) {
		t.Error("a device never handed to the session should not emit cameraClosing")
	}
}

func TestStaleConfiguredCallbackClosesSession(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)
	ctx := testCtx(t)

	// the device opens inline; holding starts before onOpened runs, so the
	// preview configure stays pending
	p := newPromise[InitResult]()
	s.exec.post(func() {
		s.initialize(p, "0", "low")
		sim.Hold(true)
	})
	settle(t, s)

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	sim.Hold(false)
	sim.Flush()
	settle(t, s)

	if _, err := p.wait(ctx); !errors.Is(err, ErrCameraAccess) {
		t.Errorf("Initialize err = %v, want ErrCameraAccess", err)
	}
	if sim.OpenSessions() != 0 {
		t.Errorf("OpenSessions() = %d, want 0", sim.OpenSessions())
	}
	assertState(t, s, StateClosed)
}

func TestStaleDisconnectAfterReopenIgnored(t *testing.T) {
	sim := newSimulator()
	s, events := initialized(t, sim)
	ctx := testCtx(t)

	// the disconnect of the first device arrives only after the camera
	// was closed and reopened
	sim.Hold(true)
	if !sim.Disconnect() {
		t.Fatal("no device to disconnect")
	}
	if err := s.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	sim.Hold(false)
	sim.Flush()
	settle(t, s)

	waitState(t, s, StatePreviewActive)
	if sim.OpenDevices() != 1 {
		t.Errorf("OpenDevices() = %d, want the reopened device only", sim.OpenDevices())
	}
	for _, e := range events.snapshot() {
		if e.Type == EventError {
			t.Errorf("unexpected error event %+v from the old device", e)
		}
	}
}

// ---------- device loss ----------

func TestDisconnect_EmitsErrorAndCloses(t *testing.T) {
	sim := newSimulator()
	s, events := initialized(t, sim)

	if !sim.Disconnect() {
		t.Fatal("no device to disconnect")
	}
	settle(t, s)

	assertState(t, s, StateClosed)
	if !events.has(Event{Type: EventError, Description: msgDisconnected}) {
		t.Errorf("events = %v, want disconnect error", events.snapshot())
	}
	if !events.has(Event{Type: EventCameraClosing}) {
		t.Errorf("events = %v, want cameraClosing", events.snapshot())
	}
	if sim.OpenDevices() != 0 || sim.OpenSessions() != 0 || sim.OpenReaders() != 0 {
		t.Errorf("devices/sessions/readers = %d/%d/%d, want 0/0/0",
			sim.OpenDevices(), sim.OpenSessions(), sim.OpenReaders())
	}
}

func TestDeviceErrorAfterOpen_EventOnly(t *testing.T) {
	sim := newSimulator()
	s, events := initialized(t, sim)

	sim.RaiseError(camera.ErrorCameraService)
	settle(t, s)

	assertState(t, s, StateClosed)
	want := Event{Type: EventError, Description: "The camera service has encountered a fatal error."}
	if !events.has(want) {
		t.Errorf("events = %v, want %v", events.snapshot(), want)
	}
}

// ---------- close / dispose ----------

func TestClose_Idempotent(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)

	if err := s.Close(ctx); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	settle(t, s)
	assertState(t, s, StateClosed)
	if sim.DoubleCloses() != 0 {
		t.Errorf("DoubleCloses() = %d, want 0", sim.DoubleCloses())
	}
	if sim.OpenDevices() != 0 || sim.OpenSessions() != 0 || sim.OpenReaders() != 0 {
		t.Errorf("devices/sessions/readers = %d/%d/%d, want 0/0/0",
			sim.OpenDevices(), sim.OpenSessions(), sim.OpenReaders())
	}
}

func TestClose_NeverInitialized(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)
	if err := s.Close(testCtx(t)); err != nil {
		t.Fatalf("Close: %v", err)
	}
	assertState(t, s, StateClosed)
}

func TestDispose_ReleasesEverything(t *testing.T) {
	sim := newSimulator()
	s, events := initialized(t, sim)
	ctx := testCtx(t)

	path := t.TempDir() + "/clip.mp4"
	if err := s.StartVideoRecording(ctx, path); err != nil {
		t.Fatalf("StartVideoRecording: %v", err)
	}
	if err := s.Dispose(ctx); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	<-s.exec.done

	if sim.LiveTextures() != 0 {
		t.Errorf("LiveTextures() = %d, want 0", sim.LiveTextures())
	}
	if sim.OpenDevices() != 0 || sim.OpenSessions() != 0 || sim.OpenReaders() != 0 {
		t.Errorf("devices/sessions/readers = %d/%d/%d, want 0/0/0",
			sim.OpenDevices(), sim.OpenSessions(), sim.OpenReaders())
	}
	for _, r := range sim.Recorders() {
		if r.State() != camera.RecorderReleased {
			t.Errorf("recorder state = %v, want released", r.State())
		}
	}
	if !events.has(Event{Type: EventCameraClosing}) {
		t.Error("dispose should emit cameraClosing")
	}

	st, err := s.State(ctx)
	if err != nil || st != StateDisposed {
		t.Errorf("State() = %v, %v, want disposed", st, err)
	}
	if err := s.TakePicture(ctx, t.TempDir()+"/x.jpg"); !errors.Is(err, ErrDisposed) {
		t.Errorf("TakePicture after dispose err = %v, want ErrDisposed", err)
	}
	if err := s.Dispose(ctx); err != nil {
		t.Errorf("second Dispose: %v", err)
	}
	if sim.DoubleCloses() != 0 {
		t.Errorf("DoubleCloses() = %d, want 0", sim.DoubleCloses())
	}
}

// ---------- host lifecycle ----------

// blockExecutor parks the control goroutine until the returned func is called.
func blockExecutor(s *Session) func() {
	gate := make(chan struct{})
	s.exec.post(func() { <-gate })
	return func() { close(gate) }
}

func TestInitializeQueuedBehindDisposeIsRejected(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)
	ctx := testCtx(t)

	release := blockExecutor(s)
	p := newPromise[InitResult]()
	s.exec.post(func() { s.dispose() })
	s.exec.post(func() { s.initialize(p, "0", "low") })
	release()

	if _, err := p.wait(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("err = %v, want ErrDisposed", err)
	}
	<-s.exec.done
	if s.state != StateDisposed {
		t.Errorf("state = %v, want disposed", s.state)
	}
	if sim.LiveTextures() != 0 || sim.OpenDevices() != 0 {
		t.Errorf("textures/devices = %d/%d, want 0/0", sim.LiveTextures(), sim.OpenDevices())
	}
}

func TestOperationsQueuedBehindDisposeAreRejected(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)
	ctx := testCtx(t)
	dir := t.TempDir()
	recorders := len(sim.Recorders())

	release := blockExecutor(s)
	s.exec.post(func() { s.dispose() })
	picture := newPromise[struct{}]()
	s.exec.post(func() { s.takePicture(picture, filepath.Join(dir, "a.jpg")) })
	start := newPromise[struct{}]()
	s.exec.post(func() { s.startVideoRecording(start, filepath.Join(dir, "clip.mp4")) })
	stop := newPromise[struct{}]()
	s.exec.post(func() { s.stopVideoRecording(stop) })
	resume := newPromise[struct{}]()
	s.exec.post(func() {
		if !rejectDisposed(s, resume) {
			s.resume()
			resume.resolve(struct{}{})
		}
	})
	s.exec.post(func() { s.dispose() })
	release()

	for name, p := range map[string]*promise[struct{}]{
		"takePicture": picture, "startVideoRecording": start,
		"stopVideoRecording": stop, "resume": resume,
	} {
		if _, err := p.wait(ctx); !errors.Is(err, ErrDisposed) {
			t.Errorf("%s err = %v, want ErrDisposed", name, err)
		}
	}
	<-s.exec.done
	if sim.OpenDevices() != 0 || sim.LiveTextures() != 0 {
		t.Errorf("devices/textures = %d/%d, want 0/0", sim.OpenDevices(), sim.LiveTextures())
	}
	if sim.DoubleCloses() != 0 {
		t.Errorf("DoubleCloses() = %d, want 0", sim.DoubleCloses())
	}
	if len(sim.Recorders()) != recorders {
		t.Error("no recorder should be created after dispose")
	}
}

func TestPauseResume_Reopens(t *testing.T) {
	sim := newSimulator()
	s, events := initialized(t, sim)
	ctx := testCtx(t)

	if err := s.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	assertState(t, s, StateClosed)
	if sim.OpenDevices() != 0 {
		t.Errorf("OpenDevices() after pause = %d, want 0", sim.OpenDevices())
	}
	settle(t, s)
	if !events.has(Event{Type: EventCameraClosing}) {
		t.Error("pause should emit cameraClosing")
	}

	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitState(t, s, StatePreviewActive)
	if sim.OpenDevices() != 1 {
		t.Errorf("OpenDevices() after resume = %d, want 1", sim.OpenDevices())
	}
}

func TestResume_IgnoredAfterPermissionPrompt(t *testing.T) {
	sim := camera.NewSimulator(backCamera())
	s, _ := newTestSession(t, sim)
	ctx := testCtx(t)

	if _, err := s.Initialize(ctx, "0", "low"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// the resume caused by the permission dialog closing
	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	settle(t, s)
	assertState(t, s, StateClosed)

	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitState(t, s, StatePreviewActive)
}

func TestResume_WhileOpenDoesNothing(t *testing.T) {
	sim := newSimulator()
	s, _ := initialized(t, sim)

	if err := s.Resume(testCtx(t)); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	settle(t, s)
	if sim.OpenDevices() != 1 {
		t.Errorf("OpenDevices() = %d, want 1", sim.OpenDevices())
	}
}

func TestResume_BeforeInitializeDoesNothing(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)
	if err := s.Resume(testCtx(t)); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	assertState(t, s, StateClosed)
	if sim.OpenDevices() != 0 {
		t.Errorf("OpenDevices() = %d, want 0", sim.OpenDevices())
	}
}

// ---------- observers ----------

func TestOnStateChange_Sequence(t *testing.T) {
	sim := newSimulator()
	var mu sync.Mutex
	var got []string
	s, err := New(Options{
		Registry: sim, Targets: sim, Textures: sim, Permissions: sim, Display: sim,
		OnStateChange: func(from, to State) {
			mu.Lock()
			got = append(got, from.String()+">"+to.String())
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := testCtx(t)

	if _, err := s.Initialize(ctx, "0", "low"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	path := t.TempDir() + "/clip.mp4"
	if err := s.StartVideoRecording(ctx, path); err != nil {
		t.Fatalf("StartVideoRecording: %v", err)
	}
	if err := s.StopVideoRecording(ctx); err != nil {
		t.Fatalf("StopVideoRecording: %v", err)
	}
	if err := s.Dispose(ctx); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	<-s.exec.done

	want := []string{
		"closed>opening",
		"opening>preview",
		"preview>recording",
		"recording>preview",
		"preview>closed",
		"closed>disposed",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAvailableCameras(t *testing.T) {
	sim := newSimulator()
	s, _ := newTestSession(t, sim)

	cams, err := s.AvailableCameras(testCtx(t))
	if err != nil {
		t.Fatalf("AvailableCameras: %v", err)
	}
	if len(cams) != 2 {
		t.Fatalf("got %d cameras, want 2", len(cams))
	}
	if cams[0] != (CameraInfo{Name: "0", LensFacing: "back", SensorOrientation: 90}) {
		t.Errorf("cams[0] = %+v", cams[0])
	}
	if cams[1].LensFacing != "front" {
		t.Errorf("cams[1].LensFacing = %q, want front", cams[1].LensFacing)
	}
}
