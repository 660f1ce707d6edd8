package session

import (
	"context"
	"errors"

	"github.com/cjeanneret/camsession/internal/debug"
)

// Close releases the capture session, the device and the still-image
// target, and resets the recorder. It is safe to call repeatedly; the
// session can be initialized or resumed afterwards.
func (s *Session) Close(ctx context.Context) error {
	_, err := call(ctx, s.exec, func(p *promise[struct{}]) {
		s.close()
		p.resolve(struct{}{})
	})
	return err
}

// Dispose closes the session and releases the preview texture and the
// recorder. The session is unusable afterwards; disposing twice is a no-op.
func (s *Session) Dispose(ctx context.Context) error {
	_, err := call(ctx, s.exec, func(p *promise[struct{}]) {
		s.dispose()
		p.resolve(struct{}{})
	})
	if errors.Is(err, ErrDisposed) {
		return nil
	}
	return err
}

// Pause handles the host pausing: the camera is closed.
func (s *Session) Pause(ctx context.Context) error { return s.Close(ctx) }

// Stop handles the host stopping: the camera is closed.
func (s *Session) Stop(ctx context.Context) error { return s.Close(ctx) }

// Resume handles the host resuming: a previously initialized camera that
// is currently closed is opened again. The first resume following a
// permission prompt is ignored, since the prompt itself paused the host.
func (s *Session) Resume(ctx context.Context) error {
	_, err := call(ctx, s.exec, func(p *promise[struct{}]) {
		if rejectDisposed(s, p) {
			return
		}
		s.resume()
		p.resolve(struct{}{})
	})
	return err
}

func (s *Session) resume() {
	if s.requestingPermission {
		s.requestingPermission = false
		debug.Verbose("Resume after permission prompt, not reopening")
		return
	}
	if s.cameraID == "" || s.texture == nil || s.device != nil || s.state == StateOpening {
		return
	}
	if s.permissionPending || !s.hasPermissions() {
		return
	}
	debug.Live("Resuming camera %s", s.cameraID)
	s.open()
}

// close tears down in the fixed order capture session, device, still
// target, recorder, and fails every reply still waiting on them.
func (s *Session) close() {
	s.gen++
	s.sessionGen++

	s.closeCaptureSession()
	if s.device != nil {
		d := s.device
		s.device = nil
		d.Close()
	}
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
	if s.recorder != nil {
		s.recorder.Reset()
	}
	s.recording = false

	s.rejectPending()
	if s.state != StateDisposed {
		s.setState(StateClosed)
	}
}

// rejectDisposed fails p with ErrDisposed when a Dispose queued ahead of
// the operation has already run.
func rejectDisposed[T any](s *Session, p *promise[T]) bool {
	if s.state != StateDisposed {
		return false
	}
	p.reject(ErrDisposed)
	return true
}

func (s *Session) rejectPending() {
	if p := s.pendingOpen; p != nil {
		s.pendingOpen = nil
		p.reject(newError(CodeCameraAccess, msgCameraClosed, nil))
	}
	if p := s.pendingPicture; p != nil {
		s.pendingPicture = nil
		p.reject(newError(CodeCameraAccess, msgCameraClosed, nil))
	}
	if p := s.pendingRecord; p != nil {
		s.pendingRecord = nil
		p.reject(newError(CodeConfigureFailed, msgClosedDuringConfig, nil))
	}
}

func (s *Session) dispose() {
	if s.state == StateDisposed {
		return
	}
	debug.Live("Disposing camera session")
	s.close()
	if s.texture != nil {
		s.texture.Release()
		s.texture = nil
	}
	if s.recorder != nil {
		s.recorder.Release()
		s.recorder = nil
	}
	s.setState(StateDisposed)
	s.exec.stop()
}
