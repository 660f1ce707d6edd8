// Package camera describes the platform capabilities a camera session
// consumes: device lookup and acquisition, capture sessions, still-image
// and recording targets, preview textures, permissions and the display.
// It represents an abstract platform, regardless of what actually drives
// the sensor; Simulator is the in-memory implementation.
package camera

import (
	"errors"
	"fmt"
)

// ErrUnknownCamera is returned by DeviceRegistry lookups for ids the
// platform does not know about.
var ErrUnknownCamera = errors.New("unknown camera")

// Size is a width x height pair reported by the hardware.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Area returns width*height, widened so large sensors don't overflow.
func (s Size) Area() int64 {
	return int64(s.Width) * int64(s.Height)
}

// Facing is the lens direction of a camera.
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
	FacingExternal
)

func (f Facing) String() string {
	switch f {
	case FacingFront:
		return "front"
	case FacingBack:
		return "back"
	case FacingExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseFacing converts "front", "back" or "external" into a Facing.
func ParseFacing(s string) (Facing, error) {
	switch s {
	case "front":
		return FacingFront, nil
	case "back":
		return FacingBack, nil
	case "external":
		return FacingExternal, nil
	default:
		return FacingBack, fmt.Errorf("unknown lens facing: %q", s)
	}
}

// OutputClass selects one of the hardware output size tables.
type OutputClass int

const (
	// OutputStill is the still-image (JPEG) output class.
	OutputStill OutputClass = iota
	// OutputPreview is the preview texture output class.
	OutputPreview
)

// Descriptor is the static capability record of one physical camera.
type Descriptor struct {
	ID                string
	Facing            Facing
	SensorOrientation int // degrees: 0, 90, 180 or 270
	OutputSizes       map[OutputClass][]Size
}

// Sizes returns the hardware-ordered size table for class.
func (d Descriptor) Sizes(class OutputClass) []Size {
	return d.OutputSizes[class]
}

// Rotation is the display rotation reported by the platform, in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Permission names a runtime permission the session needs.
type Permission string

const (
	PermissionCamera     Permission = "camera"
	PermissionMicrophone Permission = "microphone"
)

// Template selects the platform's capture request preset.
type Template int

const (
	TemplatePreview Template = iota
	TemplateStillCapture
	TemplateRecord
)

func (t Template) String() string {
	switch t {
	case TemplatePreview:
		return "preview"
	case TemplateStillCapture:
		return "still_capture"
	case TemplateRecord:
		return "record"
	default:
		return "unknown"
	}
}

// ControlMode is the 3A control mode set on a request.
type ControlMode int

const (
	ControlModeOff ControlMode = iota
	ControlModeAuto
)

// Target is anything a capture request can stream frames into: the
// preview texture surface, an image reader or a recorder surface.
type Target interface {
	TargetName() string
}

// CaptureRequest describes one capture (or repeating stream) to issue.
type CaptureRequest struct {
	Template        Template
	Targets         []Target
	ControlMode     ControlMode
	JPEGOrientation int // degrees, still captures only
}

// ErrorCode is a fatal device error reported through OnError.
type ErrorCode int

const (
	ErrorCameraInUse ErrorCode = iota + 1
	ErrorMaxCamerasInUse
	ErrorCameraDisabled
	ErrorCameraDevice
	ErrorCameraService
)

// Description returns the human readable text reported to the caller.
func (c ErrorCode) Description() string {
	switch c {
	case ErrorCameraInUse:
		return "The camera device is in use already."
	case ErrorMaxCamerasInUse:
		return "Max cameras in use"
	case ErrorCameraDisabled:
		return "The camera device could not be opened due to a device policy."
	case ErrorCameraDevice:
		return "The camera device has encountered a fatal error"
	case ErrorCameraService:
		return "The camera service has encountered a fatal error."
	default:
		return "Unknown camera error"
	}
}

// FailureReason explains why a single capture failed.
type FailureReason int

const (
	FailureError FailureReason = iota
	FailureFlushed
)

// Description returns the human readable text reported to the caller.
func (r FailureReason) Description() string {
	switch r {
	case FailureError:
		return "An error happened in the framework"
	case FailureFlushed:
		return "The capture has failed due to an abortCaptures() call"
	default:
		return "Unknown reason"
	}
}
