package session

import (
	"context"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/camera"
	"github.com/cjeanneret/camsession/internal/logic/orientation"
	"github.com/cjeanneret/camsession/internal/logic/recorder"
)

// StartVideoRecording reconfigures the pipeline for recording into
// filePath, which must not exist yet, and starts the recorder.
func (s *Session) StartVideoRecording(ctx context.Context, filePath string) error {
	_, err := call(ctx, s.exec, func(p *promise[struct{}]) {
		s.startVideoRecording(p, filePath)
	})
	return err
}

func (s *Session) startVideoRecording(p *promise[struct{}], path string) {
	if rejectDisposed(s, p) {
		return
	}
	if s.device == nil {
		p.reject(newError(CodeConfigureFailed, msgClosedDuringConfig, nil))
		return
	}
	if path == "" {
		p.reject(newError(CodeInvalidArgument, "filePath is required", nil))
		return
	}
	if exists(path) {
		p.reject(fileExistsError(path))
		return
	}
	if s.recording || s.pendingRecord != nil {
		p.reject(newError(CodeVideoRecordingFailed, "A recording is already in progress.", nil))
		return
	}
	if s.pendingPicture != nil {
		p.reject(newError(CodeCaptureInProgress, "A picture is being taken.", nil))
		return
	}
	if s.state != StatePreviewActive {
		p.reject(newError(CodeConfigureFailed, "Camera preview is not running.", nil))
		return
	}

	s.closeCaptureSession()

	if s.recorder == nil {
		s.recorder = s.opts.Targets.NewRecorder()
	} else {
		s.recorder.Reset()
	}
	hint := orientation.RecordingHint(s.opts.Display.Rotation(), s.desc.SensorOrientation, s.isFrontFacing())
	profile := s.opts.Profile.WithFrameSize(s.sizes.Video)
	rec, err := recorder.Build(s.recorder, profile, path, s.opts.EnableAudio, hint)
	if err != nil {
		s.abortRecording(p, newError(CodeVideoRecordingFailed, err.Error(), err))
		return
	}

	s.pendingRecord = p
	debug.Live("Starting recording -> %s (orientation %d)", path, hint)
	err = s.configure(camera.TemplateRecord, []camera.Target{rec.Surface()}, nil, s.onRecordReady, s.onRecordFailed)
	if err != nil {
		s.pendingRecord = nil
		s.abortRecording(p, newError(CodeVideoRecordingFailed, err.Error(), err))
	}
}

func (s *Session) onRecordReady() {
	p := s.pendingRecord
	s.pendingRecord = nil
	if err := s.recorder.Start(); err != nil {
		s.abortRecording(p, newError(CodeVideoRecordingFailed, err.Error(), err))
		return
	}
	s.recording = true
	s.setState(StateRecording)
	if p != nil {
		p.resolve(struct{}{})
	}
}

func (s *Session) onRecordFailed(msg string) {
	p := s.pendingRecord
	s.pendingRecord = nil
	s.abortRecording(p, newError(CodeConfigureFailed, msg, nil))
}

// abortRecording undoes a failed start: the recorder is reset and the
// preview pipeline restored before p is rejected.
func (s *Session) abortRecording(p *promise[struct{}], err *Error) {
	debug.Error(err)
	s.closeCaptureSession()
	if s.recorder != nil {
		s.recorder.Reset()
	}
	s.restorePreview()
	if p != nil {
		p.reject(err)
	}
}

// StopVideoRecording stops the recording and restores the preview. It is
// a no-op when nothing is recording.
func (s *Session) StopVideoRecording(ctx context.Context) error {
	_, err := call(ctx, s.exec, func(p *promise[struct{}]) {
		s.stopVideoRecording(p)
	})
	return err
}

func (s *Session) stopVideoRecording(p *promise[struct{}]) {
	if rejectDisposed(s, p) {
		return
	}
	if !s.recording {
		p.resolve(struct{}{})
		return
	}

	s.recording = false
	stopErr := s.recorder.Stop()
	s.recorder.Reset()
	s.setState(StatePreviewActive)
	debug.Live("Recording stopped")

	if err := s.startPreview(); err != nil && stopErr == nil {
		stopErr = err
	}
	if stopErr != nil {
		p.reject(newError(CodeVideoRecordingFailed, stopErr.Error(), stopErr))
		return
	}
	p.resolve(struct{}{})
}
