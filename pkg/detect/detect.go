// Package detect is the object detection interface layer.
// The actual model (and its runtime) lives behind the Detector interface,
// so the pipeline doesn't care whether detections come from an NN
// accelerator, a remote inference service, or a stub.
package detect

import (
	"github.com/areawatch/areawatch/pkg/geom"
)

const DefaultConfidenceThreshold = 0.5

// A single detected object in one frame
type Detection struct {
	Box        geom.Rect `json:"box"`
	Confidence float32   `json:"confidence"` // 0..1
	Class      string    `json:"class"`      // eg "person"
}

// Center returns the centroid of the bounding box, which is the feature
// used for identity tracking.
func (d Detection) Center() geom.Point {
	return d.Box.Center()
}

// Image is a raw pixel buffer handed to a Detector.
// Pixels is tightly packed, NChan bytes per pixel, row major.
type Image struct {
	NChan  int
	Pixels []byte
	Width  int
	Height int
}

// Detector finds objects in an image.
type Detector interface {
	// Detect runs the model on one image.
	// A failure applies to this image only; callers are expected to treat
	// it as an empty result and carry on.
	Detect(img Image) ([]Detection, error)

	// Close releases the model
	Close()
}

// nullDetector never detects anything. It exists so that the system can
// be brought up without a model attached.
type nullDetector struct{}

func NewNullDetector() Detector {
	return &nullDetector{}
}

func (d *nullDetector) Detect(img Image) ([]Detection, error) {
	return nil, nil
}

func (d *nullDetector) Close() {
}
