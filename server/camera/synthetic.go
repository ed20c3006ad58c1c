package camera

import (
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
)

// SyntheticDevice generates uniform RGB frames at the configured size.
// It lets the whole pipeline run on a machine with no capture hardware,
// and gives tests a deterministic device.
type SyntheticDevice struct {
	Fill      byte          // Pixel value for all channels
	ReadDelay time.Duration // Simulated device latency per frame

	width  int
	height int
}

func (d *SyntheticDevice) Open(width, height int) error {
	d.width = width
	d.height = height
	return nil
}

func (d *SyntheticDevice) ReadFrame() (detect.Image, error) {
	if d.ReadDelay > 0 {
		time.Sleep(d.ReadDelay)
	}
	pixels := make([]byte, d.width*d.height*3)
	for i := range pixels {
		pixels[i] = d.Fill
	}
	return detect.Image{
		NChan:  3,
		Pixels: pixels,
		Width:  d.width,
		Height: d.height,
	}, nil
}

func (d *SyntheticDevice) Close() {
}
