package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cjeanneret/camsession/internal/debug"
)

// Simulator is an in-memory platform implementing DeviceRegistry,
// TargetFactory, TextureProvider, Permissions and Display. It is used for
// development without camera hardware and by tests.
//
// Callbacks are delivered synchronously from inside the triggering call
// unless Hold is enabled, in which case they queue until Flush.
type Simulator struct {
	mu sync.Mutex

	cameras  map[string]Descriptor
	granted  map[Permission]bool
	answers  map[Permission]bool
	rotation Rotation
	frame    []byte

	// fault injection
	openSyncErr    error
	openErrCode    ErrorCode
	failConfigure  bool
	captureFailure *FailureReason
	prepareErr     error
	stopErr        error

	hold   bool
	queued []func()

	devices   []*simDevice
	sessions  []*simSession
	readers   []*simImageReader
	recorders []*SimRecorder
	textures  []*simTexture

	prompts      int
	doubleCloses int
	lastCapture  *CaptureRequest
}

// NewSimulator creates a simulator knowing the given cameras. Permissions
// start denied and the permission prompt grants everything it is asked.
func NewSimulator(cams ...Descriptor) *Simulator {
	s := &Simulator{
		cameras: make(map[string]Descriptor),
		granted: make(map[Permission]bool),
		answers: map[Permission]bool{
			PermissionCamera:     true,
			PermissionMicrophone: true,
		},
		frame: testFrame(),
	}
	for _, c := range cams {
		s.cameras[c.ID] = c
	}
	return s
}

// testFrame encodes a small gray JPEG used as the payload of every still capture.
func testFrame() []byte {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: 0x80}.Y
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75})
	return buf.Bytes()
}

// ---------- configuration & fault injection ----------

// AddCamera registers (or replaces) a camera descriptor.
func (s *Simulator) AddCamera(d Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras[d.ID] = d
}

// Grant sets whether p is already granted without prompting.
func (s *Simulator) Grant(p Permission, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted[p] = granted
}

// AnswerPrompt sets what the permission prompt answers for p.
func (s *Simulator) AnswerPrompt(p Permission, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[p] = granted
}

// SetRotation changes the simulated display rotation.
func (s *Simulator) SetRotation(r Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = r
}

// SetFrame replaces the bytes delivered by still captures.
func (s *Simulator) SetFrame(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = append([]byte(nil), b...)
}

// FailOpenSync makes OpenDevice return err immediately (nil clears it).
func (s *Simulator) FailOpenSync(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openSyncErr = err
}

// FailOpen makes subsequent opens report code through OnError (0 clears it).
func (s *Simulator) FailOpen(code ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErrCode = code
}

// FailConfigure makes capture session creation report OnConfigureFailed.
func (s *Simulator) FailConfigure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConfigure = fail
}

// FailCapture makes still captures fail with reason.
func (s *Simulator) FailCapture(reason FailureReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureFailure = &reason
}

// ClearCaptureFailure restores successful still captures.
func (s *Simulator) ClearCaptureFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureFailure = nil
}

// FailPrepare makes Recorder.Prepare return err (nil clears it).
func (s *Simulator) FailPrepare(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareErr = err
}

// FailStop makes Recorder.Stop return err (nil clears it).
func (s *Simulator) FailStop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopErr = err
}

// Hold queues every callback until Flush instead of delivering it inline.
func (s *Simulator) Hold(hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = hold
}

// Flush delivers queued callbacks in order on the calling goroutine and
// returns how many ran. Callbacks queued while flushing run too.
func (s *Simulator) Flush() int {
	n := 0
	for {
		s.mu.Lock()
		if len(s.queued) == 0 {
			s.mu.Unlock()
			return n
		}
		fn := s.queued[0]
		s.queued = s.queued[1:]
		s.mu.Unlock()
		fn()
		n++
	}
}

// Disconnect reports OnDisconnected for the most recently opened device.
func (s *Simulator) Disconnect() bool {
	d := s.latestDevice()
	if d == nil || d.cb.OnDisconnected == nil {
		return false
	}
	s.deliver(func() { d.cb.OnDisconnected(d) })
	return true
}

// RaiseError reports OnError(code) for the most recently opened device.
func (s *Simulator) RaiseError(code ErrorCode) bool {
	d := s.latestDevice()
	if d == nil || d.cb.OnError == nil {
		return false
	}
	s.deliver(func() { d.cb.OnError(d, code) })
	return true
}

func (s *Simulator) latestDevice() *simDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.devices) - 1; i >= 0; i-- {
		if !s.devices[i].closed {
			return s.devices[i]
		}
	}
	return nil
}

// deliver runs fn now, or queues it while holding.
func (s *Simulator) deliver(fn func()) {
	s.mu.Lock()
	if s.hold {
		s.queued = append(s.queued, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// ---------- introspection ----------

// OpenDevices returns how many devices are open.
func (s *Simulator) OpenDevices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.devices {
		if !d.closed {
			n++
		}
	}
	return n
}

// OpenSessions returns how many capture sessions are open.
func (s *Simulator) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, cs := range s.sessions {
		if !cs.closed {
			n++
		}
	}
	return n
}

// OpenReaders returns how many image readers are open.
func (s *Simulator) OpenReaders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.readers {
		if !r.closed {
			n++
		}
	}
	return n
}

// DoubleCloses counts Close calls on handles that were already closed.
func (s *Simulator) DoubleCloses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doubleCloses
}

// Prompts returns how many permission prompts were shown.
func (s *Simulator) Prompts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts
}

// LastCapture returns the last one-shot capture request.
func (s *Simulator) LastCapture() (CaptureRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCapture == nil {
		return CaptureRequest{}, false
	}
	return *s.lastCapture, true
}

// Recorders returns every recorder created so far.
func (s *Simulator) Recorders() []*SimRecorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SimRecorder(nil), s.recorders...)
}

// LiveTextures returns how many preview textures are not released.
func (s *Simulator) LiveTextures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.textures {
		if !t.released {
			n++
		}
	}
	return n
}

// ---------- DeviceRegistry ----------

// CameraIDs returns the known camera ids in sorted order.
func (s *Simulator) CameraIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.cameras))
	for id := range s.cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Descriptor returns the capability record for id.
func (s *Simulator) Descriptor(id string) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.cameras[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("camera %q: %w", id, ErrUnknownCamera)
	}
	return d, nil
}

// OpenDevice opens camera id and reports through cb.
func (s *Simulator) OpenDevice(id string, cb DeviceStateCallback) error {
	s.mu.Lock()
	if _, ok := s.cameras[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("camera %q: %w", id, ErrUnknownCamera)
	}
	if s.openSyncErr != nil {
		err := s.openSyncErr
		s.mu.Unlock()
		return err
	}
	d := &simDevice{sim: s, id: id, cb: cb}
	s.devices = append(s.devices, d)
	code := s.openErrCode
	s.mu.Unlock()

	debug.Verbose("Simulator: opening camera %s", id)
	if code != 0 {
		s.deliver(func() {
			if cb.OnError != nil {
				cb.OnError(d, code)
			}
		})
		return nil
	}
	s.deliver(func() {
		if cb.OnOpened != nil {
			cb.OnOpened(d)
		}
	})
	return nil
}

// ---------- Permissions / Display ----------

// Has reports whether p is granted.
func (s *Simulator) Has(p Permission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted[p]
}

// Request shows the simulated prompt; answers become grants.
func (s *Simulator) Request(perms []Permission, done func(granted map[Permission]bool)) {
	s.mu.Lock()
	s.prompts++
	result := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		if s.answers[p] {
			s.granted[p] = true
		}
		result[p] = s.granted[p]
	}
	s.mu.Unlock()
	s.deliver(func() { done(result) })
}

// Rotation returns the simulated display rotation.
func (s *Simulator) Rotation() Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// ---------- TextureProvider / TargetFactory ----------

// CreateTexture allocates a preview texture with a random id.
func (s *Simulator) CreateTexture() (Texture, error) {
	t := &simTexture{sim: s, id: uuid.NewString()}
	s.mu.Lock()
	s.textures = append(s.textures, t)
	s.mu.Unlock()
	return t, nil
}

// NewImageReader creates a still-image target.
func (s *Simulator) NewImageReader(size Size, maxImages int) (ImageReader, error) {
	if size.Width <= 0 || size.Height <= 0 || maxImages <= 0 {
		return nil, fmt.Errorf("invalid image reader %s x%d", size, maxImages)
	}
	r := &simImageReader{sim: s, size: size, maxImages: maxImages}
	s.mu.Lock()
	s.readers = append(s.readers, r)
	s.mu.Unlock()
	return r, nil
}

// NewRecorder creates an unconfigured recorder.
func (s *Simulator) NewRecorder() Recorder {
	r := &SimRecorder{sim: s}
	s.mu.Lock()
	s.recorders = append(s.recorders, r)
	s.mu.Unlock()
	return r
}

// ---------- handles ----------

type simDevice struct {
	sim    *Simulator
	id     string
	cb     DeviceStateCallback
	closed bool // guarded by sim.mu
}

func (d *simDevice) ID() string { return d.id }

func (d *simDevice) CreateCaptureSession(targets []Target, cb SessionStateCallback) error {
	s := d.sim
	s.mu.Lock()
	if d.closed {
		s.mu.Unlock()
		return fmt.Errorf("camera %s: device closed", d.id)
	}
	cs := &simSession{sim: s, device: d, targets: append([]Target(nil), targets...)}
	s.sessions = append(s.sessions, cs)
	fail := s.failConfigure
	s.mu.Unlock()

	if fail {
		s.deliver(func() {
			if cb.OnConfigureFailed != nil {
				cb.OnConfigureFailed(cs)
			}
		})
		return nil
	}
	s.deliver(func() {
		if cb.OnConfigured != nil {
			cb.OnConfigured(cs)
		}
	})
	return nil
}

func (d *simDevice) Close() {
	s := d.sim
	s.mu.Lock()
	if d.closed {
		s.doubleCloses++
		s.mu.Unlock()
		return
	}
	d.closed = true
	// closing the device tears down its sessions
	for _, cs := range s.sessions {
		if cs.device == d {
			cs.closed = true
		}
	}
	s.mu.Unlock()

	debug.Verbose("Simulator: camera %s closed", d.id)
	if d.cb.OnClosed != nil {
		s.deliver(func() { d.cb.OnClosed(d) })
	}
}

type simSession struct {
	sim       *Simulator
	device    *simDevice
	targets   []Target
	repeating *CaptureRequest
	closed    bool // guarded by sim.mu
	closes    int
}

func (cs *simSession) SetRepeatingRequest(req CaptureRequest) error {
	s := cs.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs.closed {
		return fmt.Errorf("capture session closed")
	}
	if err := cs.checkTargets(req); err != nil {
		return err
	}
	cs.repeating = &req
	return nil
}

func (cs *simSession) Capture(req CaptureRequest, cb CaptureCallback) error {
	s := cs.sim
	s.mu.Lock()
	if cs.closed {
		s.mu.Unlock()
		return fmt.Errorf("capture session closed")
	}
	if err := cs.checkTargets(req); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lastCapture = &req
	failure := s.captureFailure
	frame := s.frame
	s.mu.Unlock()

	if failure != nil {
		reason := *failure
		s.deliver(func() {
			if cb.OnCaptureFailed != nil {
				cb.OnCaptureFailed(reason)
			}
		})
		return nil
	}
	for _, t := range req.Targets {
		if r, ok := t.(*simImageReader); ok {
			r.push(frame)
		}
	}
	return nil
}

// checkTargets rejects requests aimed at targets the session was not
// configured with; sim.mu must be held.
func (cs *simSession) checkTargets(req CaptureRequest) error {
	for _, t := range req.Targets {
		found := false
		for _, have := range cs.targets {
			if have == t {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("target %s is not part of the capture session", t.TargetName())
		}
	}
	return nil
}

func (cs *simSession) Close() {
	s := cs.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	cs.closes++
	if cs.closes > 1 {
		s.doubleCloses++
	}
	cs.closed = true
}

type simImage struct {
	data []byte
}

func (i *simImage) Planes() [][]byte { return [][]byte{i.data} }
func (i *simImage) Close() {}

type simImageReader struct {
	sim       *Simulator
	size      Size
	maxImages int
	listener  func(ImageReader)
	images    [][]byte
	closed    bool // guarded by sim.mu
}

func (r *simImageReader) TargetName() string {
	return fmt.Sprintf("image_reader:%s", r.size)
}

func (r *simImageReader) SetOnImageAvailable(fn func(ImageReader)) {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	r.listener = fn
}

func (r *simImageReader) push(frame []byte) {
	s := r.sim
	s.mu.Lock()
	if r.closed {
		s.mu.Unlock()
		return
	}
	r.images = append(r.images, append([]byte(nil), frame...))
	if len(r.images) > r.maxImages {
		r.images = r.images[len(r.images)-r.maxImages:]
	}
	fn := r.listener
	s.mu.Unlock()

	if fn != nil {
		s.deliver(func() { fn(r) })
	}
}

func (r *simImageReader) AcquireLatestImage() (Image, error) {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	if len(r.images) == 0 {
		return nil, fmt.Errorf("no image available")
	}
	latest := r.images[len(r.images)-1]
	r.images = nil
	return &simImage{data: latest}, nil
}

func (r *simImageReader) Close() {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	if r.closed {
		r.sim.doubleCloses++
		return
	}
	r.closed = true
	r.listener = nil
	r.images = nil
}

type simTexture struct {
	sim      *Simulator
	id       string
	buffer   Size
	released bool // guarded by sim.mu
}

func (t *simTexture) ID() string { return t.id }

func (t *simTexture) TargetName() string { return "preview:" + t.id }

func (t *simTexture) Surface() Target { return t }

func (t *simTexture) SetDefaultBufferSize(size Size) {
	t.sim.mu.Lock()
	defer t.sim.mu.Unlock()
	t.buffer = size
}

func (t *simTexture) Release() {
	t.sim.mu.Lock()
	defer t.sim.mu.Unlock()
	if t.released {
		t.sim.doubleCloses++
		return
	}
	t.released = true
}
