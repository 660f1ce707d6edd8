// Package recorder configures a recording target from a profile.
package recorder

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/camsession/internal/debug"
	"github.com/cjeanneret/camsession/internal/hw/camera"
)

// ErrIO is wrapped by every Build failure caused by the prepare step.
var ErrIO = errors.New("recorder prepare failed")

const (
	AudioSourceMic     = "mic"
	VideoSourceSurface = "surface"
)

// Profile is the passed-through encoder configuration.
type Profile struct {
	FileFormat      string `yaml:"file_format"`
	VideoCodec      string `yaml:"video_codec"`
	VideoBitRate    int    `yaml:"video_bitrate"`
	VideoFrameRate  int    `yaml:"frame_rate"`
	VideoWidth      int    `yaml:"frame_width"`
	VideoHeight     int    `yaml:"frame_height"`
	AudioCodec      string `yaml:"audio_codec"`
	AudioBitRate    int    `yaml:"audio_bitrate"`
	AudioSampleRate int    `yaml:"audio_sample_rate"`
}

// DefaultProfile returns the stock profile. The frame size is left zero
// so it follows the negotiated video size.
func DefaultProfile() Profile {
	return Profile{
		FileFormat:      "mpeg4",
		VideoCodec:      "h264",
		VideoBitRate:    1024 * 1000,
		VideoFrameRate:  27,
		AudioCodec:      "aac",
		AudioBitRate:    64000,
		AudioSampleRate: 16000,
	}
}

// WithDefaults fills every zero field of p from DefaultProfile.
func (p Profile) WithDefaults() Profile {
	d := DefaultProfile()
	if p.FileFormat == "" {
		p.FileFormat = d.FileFormat
	}
	if p.VideoCodec == "" {
		p.VideoCodec = d.VideoCodec
	}
	if p.VideoBitRate == 0 {
		p.VideoBitRate = d.VideoBitRate
	}
	if p.VideoFrameRate == 0 {
		p.VideoFrameRate = d.VideoFrameRate
	}
	if p.AudioCodec == "" {
		p.AudioCodec = d.AudioCodec
	}
	if p.AudioBitRate == 0 {
		p.AudioBitRate = d.AudioBitRate
	}
	if p.AudioSampleRate == 0 {
		p.AudioSampleRate = d.AudioSampleRate
	}
	return p
}

// WithFrameSize returns p with the frame size set to size unless the
// profile already names one.
func (p Profile) WithFrameSize(size camera.Size) Profile {
	if p.VideoWidth == 0 || p.VideoHeight == 0 {
		p.VideoWidth = size.Width
		p.VideoHeight = size.Height
	}
	return p
}

// Build configures rec and prepares it.
//
// The recording subsystem only accepts this exact call order; reordering
// makes prepare fail on real hardware. Audio calls are skipped entirely when
// enableAudio is false.
func Build(rec camera.Recorder, p Profile, path string, enableAudio bool, orientationHint int) (camera.Recorder, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: no recorder", ErrIO)
	}

	if enableAudio {
		rec.SetAudioSource(AudioSourceMic)
		rec.SetAudioEncodingBitRate(p.AudioBitRate)
	}
	rec.SetVideoSource(VideoSourceSurface)
	rec.SetOutputFormat(p.FileFormat)
	if enableAudio {
		rec.SetAudioEncoder(p.AudioCodec)
	}
	rec.SetVideoEncoder(p.VideoCodec)
	rec.SetVideoEncodingBitRate(p.VideoBitRate)
	if enableAudio {
		rec.SetAudioSamplingRate(p.AudioSampleRate)
	}
	rec.SetVideoFrameRate(p.VideoFrameRate)
	rec.SetVideoSize(p.VideoWidth, p.VideoHeight)
	rec.SetOutputFile(path)
	rec.SetOrientationHint(orientationHint)

	debug.Verbose("Recorder: %s %s %dx%d@%d audio=%v orientation=%d -> %s",
		p.FileFormat, p.VideoCodec, p.VideoWidth, p.VideoHeight, p.VideoFrameRate,
		enableAudio, orientationHint, path)

	if err := rec.Prepare(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return rec, nil
}
