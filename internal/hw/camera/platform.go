package camera

// DeviceStateCallback receives the outcome of DeviceRegistry.OpenDevice.
// Exactly one of OnOpened, OnDisconnected or OnError ends the open attempt;
// OnClosed fires after a successful Device.Close. Callbacks never run on the
// goroutine that called OpenDevice unless the implementation documents it;
// receivers must not assume either.
type DeviceStateCallback struct {
	OnOpened       func(d Device)
	OnClosed       func(d Device)
	OnDisconnected func(d Device)
	OnError        func(d Device, code ErrorCode)
}

// SessionStateCallback receives the outcome of Device.CreateCaptureSession.
type SessionStateCallback struct {
	OnConfigured      func(s CaptureSession)
	OnConfigureFailed func(s CaptureSession)
}

// CaptureCallback receives per-capture failures. Successful still
// captures are delivered through the ImageReader listener instead.
type CaptureCallback struct {
	OnCaptureFailed func(reason FailureReason)
}

// DeviceRegistry looks up cameras and acquires the exclusive device handle.
type DeviceRegistry interface {
	CameraIDs() ([]string, error)
	Descriptor(id string) (Descriptor, error)
	OpenDevice(id string, cb DeviceStateCallback) error
}

// Device is an opened camera.
type Device interface {
	ID() string
	CreateCaptureSession(targets []Target, cb SessionStateCallback) error
	Close()
}

// CaptureSession binds a device to a fixed set of output targets.
type CaptureSession interface {
	SetRepeatingRequest(req CaptureRequest) error
	Capture(req CaptureRequest, cb CaptureCallback) error
	Close()
}

// Image is one frame acquired from an ImageReader.
type Image interface {
	// Planes returns the raw plane buffers; JPEG frames carry a single plane.
	Planes() [][]byte
	Close()
}

// ImageReader is the still-image target.
type ImageReader interface {
	Target
	// SetOnImageAvailable installs the listener; nil removes it.
	SetOnImageAvailable(fn func(r ImageReader))
	AcquireLatestImage() (Image, error)
	Close()
}

// Recorder is the video recording target. Setters must be called in the
// order the platform expects (see the recorder package); an out-of-order
// configuration surfaces as a Prepare error.
type Recorder interface {
	SetAudioSource(source string)
	SetAudioEncodingBitRate(bps int)
	SetVideoSource(source string)
	SetOutputFormat(format string)
	SetAudioEncoder(codec string)
	SetVideoEncoder(codec string)
	SetVideoEncodingBitRate(bps int)
	SetAudioSamplingRate(hz int)
	SetVideoFrameRate(fps int)
	SetVideoSize(width, height int)
	SetOutputFile(path string)
	SetOrientationHint(degrees int)
	Prepare() error

	Surface() Target
	Start() error
	Stop() error
	// Reset returns the recorder to its unconfigured state; it can be built again.
	Reset()
	// Release frees the recorder permanently.
	Release()
}

// TargetFactory creates still-image and recording targets.
type TargetFactory interface {
	NewImageReader(size Size, maxImages int) (ImageReader, error)
	NewRecorder() Recorder
}

// Texture is the preview surface shared with the renderer.
type Texture interface {
	ID() string
	SetDefaultBufferSize(size Size)
	Surface() Target
	Release()
}

// TextureProvider allocates preview textures.
type TextureProvider interface {
	CreateTexture() (Texture, error)
}

// Permissions checks and requests runtime permissions.
type Permissions interface {
	Has(p Permission) bool
	// Request asks the user; done is called once with the final grants.
	Request(perms []Permission, done func(granted map[Permission]bool))
}

// Display reports the current display rotation.
type Display interface {
	Rotation() Rotation
}
