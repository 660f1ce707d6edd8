package session

import "fmt"

// Code classifies a session failure. The values are the error codes
// reported to callers over the method surface.
type Code string

const (
	CodeInvalidArgument             Code = "IllegalArgumentException"
	CodePermissionDenied            Code = "cameraPermission"
	CodePermissionRequestInProgress Code = "permissionRequestInProgress"
	CodeCameraAccess                Code = "CameraAccess"
	CodeFileExists                  Code = "fileExists"
	CodeIO                          Code = "IOError"
	CodeCaptureFailure              Code = "captureFailure"
	CodeCaptureInProgress           Code = "captureInProgress"
	CodeConfigureFailed             Code = "configureFailed"
	CodeVideoRecordingFailed        Code = "videoRecordingFailed"
	CodeDisposed                    Code = "disposed"
)

// Error is returned by every session operation.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code and either the same or an
// empty message, so the sentinels below match any error of their class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument             = &Error{Code: CodeInvalidArgument}
	ErrPermissionDenied            = &Error{Code: CodePermissionDenied}
	ErrPermissionRequestInProgress = &Error{Code: CodePermissionRequestInProgress}
	ErrCameraAccess                = &Error{Code: CodeCameraAccess}
	ErrFileExists                  = &Error{Code: CodeFileExists}
	ErrIO                          = &Error{Code: CodeIO}
	ErrCaptureFailure              = &Error{Code: CodeCaptureFailure}
	ErrCaptureInProgress           = &Error{Code: CodeCaptureInProgress}
	ErrConfigureFailed             = &Error{Code: CodeConfigureFailed}
	ErrVideoRecordingFailed        = &Error{Code: CodeVideoRecordingFailed}
	ErrDisposed                    = &Error{Code: CodeDisposed, Message: "camera session disposed"}
)

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// Messages reported by the session. Several are part of the observable
// behavior (error events) and must stay stable.
const (
	msgCameraClosed        = "camera closed"
	msgDisconnected        = "The camera was disconnected."
	msgClosedDuringConfig  = "Camera was closed during configuration."
	msgPreviewConfigFailed = "Failed to configure the camera for preview."
	msgSessionConfigFailed = "Failed to configure camera session"
	msgSavingImageFailed   = "Failed saving image"
	msgRequestOngoing      = "Camera permission request ongoing"
	msgCameraNotGranted    = "MediaRecorderCamera permission not granted"
	msgAudioNotGranted     = "MediaRecorderAudio permission not granted"
)

func fileExistsError(path string) *Error {
	return newError(CodeFileExists,
		fmt.Sprintf("File at path '%s' already exists. Cannot overwrite.", path), nil)
}
