package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/logic/orientation"
)

// TakePicture captures one still image and writes it to path, which must
// not exist yet. Only one capture may be in flight.
func (s *Session) TakePicture(ctx context.Context, path string) error {
	_, err := call(ctx, s.exec, func(p *promise[struct{}]) {
		s.takePicture(p, path)
	})
	return err
}

func (s *Session) takePicture(p *promise[struct{}], path string) {
	if rejectDisposed(s, p) {
		return
	}
	if path == "" {
		p.reject(newError(CodeInvalidArgument, "path is required", nil))
		return
	}
	if exists(path) {
		p.reject(fileExistsError(path))
		return
	}
	if s.pendingPicture != nil {
		p.reject(newError(CodeCaptureInProgress, "A picture is already being taken.", nil))
		return
	}
	if s.recording || s.pendingRecord != nil {
		p.reject(newError(CodeCameraAccess, "Cannot take a picture while recording.", nil))
		return
	}
	if s.capture == nil || s.reader == nil || s.state != StatePreviewActive {
		p.reject(newError(CodeCameraAccess, "Camera is not open.", nil))
		return
	}

	s.pendingPicture = p
	s.reader.SetOnImageAvailable(func(r camera.ImageReader) {
		s.exec.post(func() { s.onImageAvailable(p, r, path) })
	})

	hint := orientation.CaptureHint(s.opts.Display.Rotation(), s.desc.SensorOrientation, s.isFrontFacing())
	req := camera.CaptureRequest{
		Template:        camera.TemplateStillCapture,
		Targets:         []camera.Target{s.reader},
		ControlMode:     camera.ControlModeAuto,
		JPEGOrientation: hint,
	}
	debug.Live("Taking picture -> %s (orientation %d)", path, hint)

	err := s.capture.Capture(req, camera.CaptureCallback{
		OnCaptureFailed: func(reason camera.FailureReason) {
			s.exec.post(func() {
				s.finishPicture(p, newError(CodeCaptureFailure, reason.Description(), nil))
			})
		},
	})
	if err != nil {
		s.finishPicture(p, newError(CodeCameraAccess, err.Error(), err))
	}
}

func (s *Session) onImageAvailable(p *promise[struct{}], r camera.ImageReader, path string) {
	if s.pendingPicture != p {
		return
	}
	img, err := r.AcquireLatestImage()
	if err != nil {
		s.finishPicture(p, newError(CodeIO, msgSavingImageFailed, err))
		return
	}
	defer img.Close()

	planes := img.Planes()
	if len(planes) == 0 {
		s.finishPicture(p, newError(CodeIO, msgSavingImageFailed, errors.New("image has no planes")))
		return
	}
	if err := writeNew(path, planes[0]); err != nil {
		s.finishPicture(p, newError(CodeIO, msgSavingImageFailed, err))
		return
	}
	debug.Live("Picture saved: %s (%d bytes)", path, len(planes[0]))
	s.finishPicture(p, nil)
}

// finishPicture settles p if it is still the capture in flight.
func (s *Session) finishPicture(p *promise[struct{}], err error) {
	if s.pendingPicture != p {
		return
	}
	s.pendingPicture = nil
	if s.reader != nil {
		s.reader.SetOnImageAvailable(nil)
	}
	if err != nil {
		debug.Error(err)
		p.reject(err)
		return
	}
	p.resolve(struct{}{})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeNew writes data to a file that must not exist yet.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s appeared during capture: %w", path, err)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
