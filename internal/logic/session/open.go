package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/logic/sizing"
)

var requiredPermissions = []camera.Permission{camera.PermissionCamera, camera.PermissionMicrophone}

// Initialize opens cameraID with the given resolution preset ("low",
// "medium" or "high") and starts the preview. Any camera already open is
// closed first. It returns once the preview stream is running.
func (s *Session) Initialize(ctx context.Context, cameraID, preset string) (InitResult, error) {
	return call(ctx, s.exec, func(p *promise[InitResult]) {
		s.initialize(p, cameraID, preset)
	})
}

func (s *Session) initialize(p *promise[InitResult], cameraID, presetName string) {
	if rejectDisposed(s, p) {
		return
	}
	debug.Live("Initialize camera %q preset %q", cameraID, presetName)

	if s.permissionPending {
		p.reject(newError(CodePermissionRequestInProgress, msgRequestOngoing, nil))
		return
	}

	preset, err := sizing.ParsePreset(presetName)
	if err != nil {
		p.reject(newError(CodeInvalidArgument, fmt.Sprintf("Unknown preset: %s", presetName), err))
		return
	}
	desc, err := s.opts.Registry.Descriptor(cameraID)
	if err != nil {
		p.reject(newError(CodeInvalidArgument, err.Error(), err))
		return
	}
	sizes, err := sizing.Resolve(desc, preset)
	if err != nil {
		p.reject(newError(CodeInvalidArgument, err.Error(), err))
		return
	}

	s.close()

	s.cameraID = cameraID
	s.desc = desc
	s.sizes = sizes
	debug.Sizes(sizes.Capture, sizes.Preview, sizes.Video)

	if s.texture == nil {
		tex, err := s.opts.Textures.CreateTexture()
		if err != nil {
			p.reject(newError(CodeCameraAccess, err.Error(), err))
			return
		}
		s.texture = tex
	}

	s.pendingOpen = p
	s.requestingPermission = false
	if s.hasPermissions() {
		s.open()
		return
	}

	s.permissionPending = true
	s.requestingPermission = true
	debug.Verbose("Requesting permissions %v", requiredPermissions)
	s.opts.Permissions.Request(slices.Clone(requiredPermissions), func(map[camera.Permission]bool) {
		s.exec.post(func() { s.onPermissionResult(p) })
	})
}

func (s *Session) hasPermissions() bool {
	for _, perm := range requiredPermissions {
		if !s.opts.Permissions.Has(perm) {
			return false
		}
	}
	return true
}

// onPermissionResult resumes the initialize that requested permissions.
// Grants are read back from the permission capability, not the prompt.
func (s *Session) onPermissionResult(p *promise[InitResult]) {
	s.permissionPending = false
	if s.pendingOpen != p {
		debug.Verbose("Permission result for a superseded initialize, ignoring")
		return
	}
	if !s.opts.Permissions.Has(camera.PermissionCamera) {
		s.pendingOpen = nil
		p.reject(newError(CodePermissionDenied, msgCameraNotGranted, nil))
		return
	}
	if !s.opts.Permissions.Has(camera.PermissionMicrophone) {
		s.pendingOpen = nil
		p.reject(newError(CodePermissionDenied, msgAudioNotGranted, nil))
		return
	}
	s.open()
}

// openAttempt ties device callbacks to the open call that issued them.
type openAttempt struct {
	gen     uint64
	adopted bool // the delivered device became s.device
}

// open requests the device. The reply, if any, is s.pendingOpen; a nil
// pendingOpen (reopen after resume) reports failures as events only.
func (s *Session) open() {
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}

	s.gen++
	att := &openAttempt{gen: s.gen}
	s.setState(StateOpening)

	reader, err := s.opts.Targets.NewImageReader(s.sizes.Capture, stillImageBuffers)
	if err != nil {
		s.failOpen(newError(CodeCameraAccess, err.Error(), err))
		return
	}
	s.reader = reader

	debug.Verbose("Opening camera %s (gen %d)", s.cameraID, att.gen)
	if err := s.opts.Registry.OpenDevice(s.cameraID, s.deviceCallbacks(att)); err != nil {
		s.failOpen(newError(CodeCameraAccess, err.Error(), err))
	}
}

// failOpen tears down a failed open and reports err through the pending
// reply, or as an error event when nothing is waiting.
func (s *Session) failOpen(err *Error) {
	p := s.pendingOpen
	s.pendingOpen = nil
	s.close()
	if p != nil {
		p.reject(err)
		return
	}
	s.emitError(err.Message)
}

func (s *Session) deviceCallbacks(att *openAttempt) camera.DeviceStateCallback {
	return camera.DeviceStateCallback{
		OnOpened: func(d camera.Device) {
			if !s.exec.post(func() { s.onOpened(att, d) }) {
				d.Close()
			}
		},
		OnClosed: func(camera.Device) {
			s.exec.post(func() { s.onClosed(att) })
		},
		OnDisconnected: func(d camera.Device) {
			s.exec.post(func() { s.onDeviceLost(att, d, msgDisconnected) })
		},
		OnError: func(d camera.Device, code camera.ErrorCode) {
			s.exec.post(func() { s.onDeviceLost(att, d, code.Description()) })
		},
	}
}

func (s *Session) onOpened(att *openAttempt, d camera.Device) {
	if att.gen != s.gen {
		debug.Callback("onOpened", att.gen, s.gen)
		d.Close()
		return
	}
	att.adopted = true
	s.device = d
	debug.Live("Camera %s opened", d.ID())

	if err := s.startPreview(); err != nil {
		s.failOpen(newError(CodeCameraAccess, err.Error(), err))
	}
}

func (s *Session) onClosed(att *openAttempt) {
	if !att.adopted {
		return
	}
	s.events.emit(Event{Type: EventCameraClosing})
}

// onDeviceLost handles a disconnect or fatal device error. Both are
// reported as error events; a pending initialize also fails with them.
func (s *Session) onDeviceLost(att *openAttempt, d camera.Device, description string) {
	if !att.adopted {
		// the platform handed us a device we never took ownership of
		d.Close()
	}
	if att.gen != s.gen {
		debug.Callback("onDeviceLost", att.gen, s.gen)
		return
	}
	debug.Live("Camera lost: %s", description)

	p := s.pendingOpen
	s.pendingOpen = nil
	s.close()
	if p != nil {
		p.reject(newError(CodeCameraAccess, description, nil))
	}
	s.emitError(description)
}

// configure replaces the capture session with one streaming into the
// preview surface plus stream, with still attached as an additional
// non-streaming target when non-nil. ready or failed runs on the executor
// once the platform answers, unless the answer is stale by then.
func (s *Session) configure(tmpl camera.Template, stream []camera.Target, still camera.Target, ready func(), failed func(msg string)) error {
	s.closeCaptureSession()
	if s.device == nil {
		return newError(CodeConfigureFailed, msgClosedDuringConfig, nil)
	}

	s.texture.SetDefaultBufferSize(s.sizes.Preview)
	streamTargets := append([]camera.Target{s.texture.Surface()}, stream...)
	sessionTargets := slices.Clone(streamTargets)
	if still != nil {
		sessionTargets = append(sessionTargets, still)
	}
	req := camera.CaptureRequest{
		Template:    tmpl,
		Targets:     streamTargets,
		ControlMode: camera.ControlModeAuto,
	}

	s.sessionGen++
	gen, sgen := s.gen, s.sessionGen
	debug.Verbose("Configuring %s capture session (gen %d/%d)", tmpl, gen, sgen)

	return s.device.CreateCaptureSession(sessionTargets, camera.SessionStateCallback{
		OnConfigured: func(cs camera.CaptureSession) {
			if !s.exec.post(func() { s.onConfigured(gen, sgen, cs, req, ready, failed) }) {
				cs.Close()
			}
		},
		OnConfigureFailed: func(camera.CaptureSession) {
			s.exec.post(func() {
				if s.isCurrent(gen, sgen) {
					failed(msgSessionConfigFailed)
				}
			})
		},
	})
}

func (s *Session) isCurrent(gen, sgen uint64) bool {
	return gen == s.gen && sgen == s.sessionGen && s.device != nil
}

func (s *Session) onConfigured(gen, sgen uint64, cs camera.CaptureSession, req camera.CaptureRequest, ready func(), failed func(string)) {
	if !s.isCurrent(gen, sgen) {
		debug.Callback("onConfigured", sgen, s.sessionGen)
		cs.Close()
		return
	}
	s.capture = cs
	if err := cs.SetRepeatingRequest(req); err != nil {
		failed(err.Error())
		return
	}
	ready()
}

func (s *Session) closeCaptureSession() {
	if s.capture != nil {
		s.capture.Close()
		s.capture = nil
	}
}

// startPreview streams into the preview surface with the still-image
// target attached. Used after open and after a recording ends.
func (s *Session) startPreview() error {
	return s.configure(camera.TemplatePreview, nil, s.reader, s.onPreviewReady, s.onPreviewFailed)
}

func (s *Session) onPreviewReady() {
	s.setState(StatePreviewActive)
	if p := s.pendingOpen; p != nil {
		s.pendingOpen = nil
		p.resolve(InitResult{
			TextureID:     s.texture.ID(),
			PreviewWidth:  s.sizes.Preview.Width,
			PreviewHeight: s.sizes.Preview.Height,
		})
	}
}

func (s *Session) onPreviewFailed(msg string) {
	if msg == msgSessionConfigFailed {
		msg = msgPreviewConfigFailed
	}
	s.failOpen(newError(CodeCameraAccess, msg, nil))
}

// restorePreview brings the preview back after a recording attempt ends.
func (s *Session) restorePreview() {
	if s.device == nil {
		return
	}
	if err := s.startPreview(); err != nil {
		s.failOpen(newError(CodeCameraAccess, err.Error(), err))
	}
}
