package camera

import (
	"errors"

	"github.com/areawatch/areawatch/pkg/detect"
)

// ErrDeviceUnavailable means the capture device could not be opened.
// This is fatal to the camera that owns the device, and nothing else.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// Device is a single capture device (eg a V4L webcam, or a decoded
// network stream). Implementations live outside this package; the
// capture loop only needs these three operations.
type Device interface {
	// Open acquires the device and configures it for the requested
	// frame size. The device may pick a different size; the frames it
	// returns are authoritative.
	Open(width, height int) error

	// ReadFrame blocks until the next frame is available.
	// A failed read is transient: the capture loop logs it and tries again.
	ReadFrame() (detect.Image, error)

	// Close releases the device. Called exactly once per successful Open.
	Close()
}
