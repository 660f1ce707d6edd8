// Package orientation computes the rotation hints attached to still
// captures and recordings.
package orientation

import "github.com/cjeanneret/camsession/internal/hw/camera"

// RotationToDegrees maps a display rotation to degrees. Unknown values
// are treated as 0.
func RotationToDegrees(r camera.Rotation) int {
	switch r {
	case camera.Rotation90:
		return 90
	case camera.Rotation180:
		return 180
	case camera.Rotation270:
		return 270
	default:
		return 0
	}
}

// displayDegrees returns the display orientation, negated for front cameras.
func displayDegrees(r camera.Rotation, front bool) int {
	d := RotationToDegrees(r)
	if front {
		d = -d
	}
	return d
}

// CaptureHint is the JPEG orientation for a still capture:
// (-display + sensor) mod 360.
func CaptureHint(r camera.Rotation, sensorOrientation int, front bool) int {
	return normalize(-displayDegrees(r, front) + sensorOrientation)
}

// RecordingHint is the orientation hint for the recorder:
// (display + sensor) mod 360. The sign differs from CaptureHint because the
// recording pipeline uses the opposite rotation convention.
func RecordingHint(r camera.Rotation, sensorOrientation int, front bool) int {
	return normalize(displayDegrees(r, front) + sensorOrientation)
}

func normalize(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
