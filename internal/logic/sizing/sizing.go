// Package sizing negotiates capture, preview and recording sizes against
// the output size tables a camera reports.
package sizing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cjeanneret/camsession/internal/hw/camera"
)

var (
	// ErrUnknownPreset is returned by ParsePreset for unrecognized names.
	ErrUnknownPreset = errors.New("unknown resolution preset")
	// ErrNoSizes is returned when a descriptor reports an empty size table.
	ErrNoSizes = errors.New("camera reports no output sizes")
)

// maxVideoHeight is the tallest frame the recording pipeline accepts.
const maxVideoHeight = 1080

// Preset is the caller-requested resolution class.
type Preset int

const (
	PresetLow Preset = iota
	PresetMedium
	PresetHigh
)

func (p Preset) String() string {
	switch p {
	case PresetLow:
		return "low"
	case PresetMedium:
		return "medium"
	case PresetHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePreset converts "low", "medium" or "high" into a Preset.
func ParsePreset(s string) (Preset, error) {
	switch s {
	case "low":
		return PresetLow, nil
	case "medium":
		return PresetMedium, nil
	case "high":
		return PresetHigh, nil
	default:
		return PresetLow, fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
}

// MinBound returns the size a preview candidate must strictly exceed
// in both dimensions.
func (p Preset) MinBound() camera.Size {
	switch p {
	case PresetHigh:
		return camera.Size{Width: 1024, Height: 768}
	case PresetMedium:
		return camera.Size{Width: 640, Height: 480}
	default:
		return camera.Size{Width: 320, Height: 240}
	}
}

// Selected holds the sizes chosen for one initialize call.
type Selected struct {
	Capture camera.Size
	Preview camera.Size
	Video   camera.Size
}

// Resolve selects the capture, preview and video sizes for desc.
//
// Capture is the largest still size by area (first wins on ties). Preview
// candidates must have exactly the capture aspect ratio and exceed the
// preset bound; the smallest becomes the preview and the largest whose
// height fits the recorder becomes the video size. Without any candidate
// both fall back to the first preview table entry.
func Resolve(desc camera.Descriptor, preset Preset) (Selected, error) {
	stills := desc.Sizes(camera.OutputStill)
	previews := desc.Sizes(camera.OutputPreview)
	if len(stills) == 0 {
		return Selected{}, fmt.Errorf("camera %s still table: %w", desc.ID, ErrNoSizes)
	}
	if len(previews) == 0 {
		return Selected{}, fmt.Errorf("camera %s preview table: %w", desc.ID, ErrNoSizes)
	}

	sel := Selected{Capture: largest(stills)}
	ratio := aspect(sel.Capture)
	bound := preset.MinBound()

	var pool []camera.Size
	for _, s := range previews {
		if aspect(s) == ratio && s.Width > bound.Width && s.Height > bound.Height {
			pool = append(pool, s)
		}
	}

	if len(pool) == 0 {
		sel.Preview = previews[0]
		sel.Video = previews[0]
		return sel, nil
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Area() < pool[j].Area()
	})
	sel.Preview = pool[0]
	sel.Video = pool[0]
	for i := len(pool) - 1; i >= 0; i-- {
		if pool[i].Height <= maxVideoHeight {
			sel.Video = pool[i]
			break
		}
	}
	return sel, nil
}

// largest returns the first maximum-area entry of sizes.
func largest(sizes []camera.Size) camera.Size {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Area() > best.Area() {
			best = s
		}
	}
	return best
}

// aspect returns width/height in single precision. Callers compare it
// exactly, without tolerance.
func aspect(s camera.Size) float32 {
	if s.Height == 0 {
		return 0
	}
	return float32(s.Width) / float32(s.Height)
}
