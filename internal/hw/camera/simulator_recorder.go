package camera

import (
	"fmt"
	"os"
	"slices"
)

// RecorderState is the lifecycle state of a SimRecorder.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderPrepared
	RecorderRecording
	RecorderStopped
	RecorderReleased
)

func (s RecorderState) String() string {
	switch s {
	case RecorderIdle:
		return "idle"
	case RecorderPrepared:
		return "prepared"
	case RecorderRecording:
		return "recording"
	case RecorderStopped:
		return "stopped"
	case RecorderReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Configuration order the simulated platform accepts. Prepare fails on
// anything else, like the real recording subsystem does.
var (
	recorderOrderAudio = []string{
		"SetAudioSource", "SetAudioEncodingBitRate",
		"SetVideoSource", "SetOutputFormat",
		"SetAudioEncoder", "SetVideoEncoder", "SetVideoEncodingBitRate",
		"SetAudioSamplingRate", "SetVideoFrameRate", "SetVideoSize",
		"SetOutputFile", "SetOrientationHint",
	}
	recorderOrderVideoOnly = []string{
		"SetVideoSource", "SetOutputFormat",
		"SetVideoEncoder", "SetVideoEncodingBitRate",
		"SetVideoFrameRate", "SetVideoSize",
		"SetOutputFile", "SetOrientationHint",
	}
)

// SimRecorder is the simulated recording target. It writes a one-line
// placeholder container describing the configuration instead of encoding.
type SimRecorder struct {
	sim *Simulator

	calls       []string
	state       RecorderState
	format      string
	videoCodec  string
	audioCodec  string
	width       int
	height      int
	frameRate   int
	orientation int
	outputPath  string
	file        *os.File
}

// record appends call to the configuration log and applies set under the lock.
func (r *SimRecorder) record(call string, set func()) {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	r.calls = append(r.calls, call)
	if set != nil {
		set()
	}
}

func (r *SimRecorder) SetAudioSource(source string) { r.record("SetAudioSource", nil) }
func (r *SimRecorder) SetAudioEncodingBitRate(bps int) { r.record("SetAudioEncodingBitRate", nil) }
func (r *SimRecorder) SetVideoSource(source string) { r.record("SetVideoSource", nil) }
func (r *SimRecorder) SetVideoEncodingBitRate(bps int) { r.record("SetVideoEncodingBitRate", nil) }
func (r *SimRecorder) SetAudioSamplingRate(hz int) { r.record("SetAudioSamplingRate", nil) }

func (r *SimRecorder) SetOutputFormat(format string) {
	r.record("SetOutputFormat", func() { r.format = format })
}

func (r *SimRecorder) SetAudioEncoder(codec string) {
	r.record("SetAudioEncoder", func() { r.audioCodec = codec })
}

func (r *SimRecorder) SetVideoEncoder(codec string) {
	r.record("SetVideoEncoder", func() { r.videoCodec = codec })
}

func (r *SimRecorder) SetVideoFrameRate(fps int) {
	r.record("SetVideoFrameRate", func() { r.frameRate = fps })
}

func (r *SimRecorder) SetVideoSize(width, height int) {
	r.record("SetVideoSize", func() { r.width, r.height = width, height })
}

func (r *SimRecorder) SetOutputFile(path string) {
	r.record("SetOutputFile", func() { r.outputPath = path })
}

func (r *SimRecorder) SetOrientationHint(degrees int) {
	r.record("SetOrientationHint", func() { r.orientation = degrees })
}

// Prepare validates the configuration order and creates the output file.
func (r *SimRecorder) Prepare() error {
	r.sim.mu.Lock()
	injected := r.sim.prepareErr
	calls := slices.Clone(r.calls)
	state := r.state
	path := r.outputPath
	r.sim.mu.Unlock()

	if state != RecorderIdle {
		return fmt.Errorf("prepare called in state %s", state)
	}
	if injected != nil {
		return injected
	}
	if !slices.Equal(calls, recorderOrderAudio) && !slices.Equal(calls, recorderOrderVideoOnly) {
		return fmt.Errorf("prepare failed: recorder configured out of order: %v", calls)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prepare failed: %w", err)
	}

	r.sim.mu.Lock()
	r.file = f
	r.state = RecorderPrepared
	r.sim.mu.Unlock()
	return nil
}

func (r *SimRecorder) TargetName() string { return "recorder" }

// Surface returns the recorder's input surface.
func (r *SimRecorder) Surface() Target { return r }

func (r *SimRecorder) Start() error {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	if r.state != RecorderPrepared {
		return fmt.Errorf("start called in state %s", r.state)
	}
	r.state = RecorderRecording
	return nil
}

func (r *SimRecorder) Stop() error {
	r.sim.mu.Lock()
	if r.state != RecorderRecording {
		state := r.state
		r.sim.mu.Unlock()
		return fmt.Errorf("stop called in state %s", state)
	}
	injected := r.sim.stopErr
	r.state = RecorderStopped
	f := r.file
	r.file = nil
	summary := fmt.Sprintf("SIMULATED %s video=%s audio=%s %dx%d@%d orientation=%d\n",
		r.format, r.videoCodec, r.audioCodec, r.width, r.height, r.frameRate, r.orientation)
	r.sim.mu.Unlock()

	if f != nil {
		_, _ = f.WriteString(summary)
		if err := f.Close(); err != nil && injected == nil {
			return err
		}
	}
	return injected
}

// Reset drops the configuration; the recorder can be configured again.
func (r *SimRecorder) Reset() {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	if r.state == RecorderReleased {
		return
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	r.calls = nil
	r.state = RecorderIdle
}

func (r *SimRecorder) Release() {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	if r.state == RecorderReleased {
		r.sim.doubleCloses++
		return
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	r.state = RecorderReleased
}

// Calls returns the configuration calls made since the last reset.
func (r *SimRecorder) Calls() []string {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	return slices.Clone(r.calls)
}

// State returns the recorder lifecycle state.
func (r *SimRecorder) State() RecorderState {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	return r.state
}

// OrientationHint returns the configured orientation hint.
func (r *SimRecorder) OrientationHint() int {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	return r.orientation
}

// VideoSize returns the configured frame size.
func (r *SimRecorder) VideoSize() Size {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	return Size{Width: r.width, Height: r.height}
}
