// Package session owns one exclusive camera: device acquisition, the
// preview stream, still captures, video recording and the event stream
// reporting asynchronous device conditions.
//
// All session work runs on a single control goroutine. Public methods post
// onto it and wait for their result; platform callbacks are posted onto it
// too, tagged with the device and capture-session generation they were
// issued for so stale deliveries can be discarded.
package session

import (
	"context"
	"errors"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/logic/recorder"
	"github.com/cjeanneret/camsession/internal/logic/sizing"
)

// stillImageBuffers is how many frames the still-image target may hold.
const stillImageBuffers = 2

// State is the caller-visible session state.
type State int

const (
	StateClosed State = iota
	StateOpening
	StatePreviewActive
	StateRecording
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StatePreviewActive:
		return "preview"
	case StateRecording:
		return "recording"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Options are the platform capabilities and settings a session uses.
type Options struct {
	Registry    camera.DeviceRegistry
	Targets     camera.TargetFactory
	Textures    camera.TextureProvider
	Permissions camera.Permissions
	Display     camera.Display

	// Profile is the recording profile; zero fields take the defaults and a
	// zero frame size follows the negotiated video size.
	Profile     recorder.Profile
	EnableAudio bool

	// OnStateChange, if set, is called on the control goroutine after
	// every state transition.
	OnStateChange func(from, to State)
}

// InitResult is returned by a successful Initialize.
type InitResult struct {
	TextureID     string `json:"textureId"`
	PreviewWidth  int    `json:"previewWidth"`
	PreviewHeight int    `json:"previewHeight"`
}

// Session is the camera session state machine. Create it with New.
type Session struct {
	opts   Options
	exec   *executor
	events sinkSlot

	// Everything below is owned by the executor goroutine.
	state    State
	cameraID string
	desc     camera.Descriptor
	sizes    sizing.Selected

	texture  camera.Texture
	device   camera.Device
	capture  camera.CaptureSession
	reader   camera.ImageReader
	recorder camera.Recorder

	recording bool

	// gen changes on every open and close; sessionGen on every capture
	// session create and close.
	gen        uint64
	sessionGen uint64

	permissionPending    bool
	requestingPermission bool

	pendingOpen    *promise[InitResult]
	pendingPicture *promise[struct{}]
	pendingRecord  *promise[struct{}]
}

// New creates a closed session.
func New(opts Options) (*Session, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("session: device registry is required")
	case opts.Targets == nil:
		return nil, errors.New("session: target factory is required")
	case opts.Textures == nil:
		return nil, errors.New("session: texture provider is required")
	case opts.Permissions == nil:
		return nil, errors.New("session: permissions are required")
	case opts.Display == nil:
		return nil, errors.New("session: display is required")
	}
	opts.Profile = opts.Profile.WithDefaults()

	return &Session{
		opts: opts,
		exec: newExecutor(),
	}, nil
}

// State returns the current state. It is ordered after every operation
// posted before it.
func (s *Session) State(ctx context.Context) (State, error) {
	st, err := call(ctx, s.exec, func(p *promise[State]) { p.resolve(s.state) })
	if errors.Is(err, ErrDisposed) {
		return StateDisposed, nil
	}
	return st, err
}

// Sizes returns the sizes negotiated by the last Initialize.
func (s *Session) Sizes(ctx context.Context) (sizing.Selected, error) {
	return call(ctx, s.exec, func(p *promise[sizing.Selected]) { p.resolve(s.sizes) })
}

// AvailableCameras lists the cameras known to the session's registry.
func (s *Session) AvailableCameras(ctx context.Context) ([]CameraInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ListCameras(s.opts.Registry)
}

func (s *Session) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	debug.Transition(from, to)
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(from, to)
	}
}

func (s *Session) isFrontFacing() bool {
	return s.desc.Facing == camera.FacingFront
}
