package livecameras

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/areawatch/areawatch/server/camera"
	"github.com/cyclopcam/logs"
)

var (
	// ErrDuplicateCamera means AddCamera was called with an id that is
	// already registered.
	ErrDuplicateCamera = errors.New("camera id already registered")
)

// Info is a read-only snapshot of one camera's configuration and health.
type Info struct {
	ID         string `json:"id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FPS        int    `json:"fps"`
	State      string `json:"state"`
	FrameCount int64  `json:"frameCount"`
	Failed     int64  `json:"failedReads"`
	Dropped    int64  `json:"droppedFrames"`
}

// LiveCameras manages the set of running cameras, by id.
// It is the only component that starts and stops cameras. All access to
// the camera map is serialized behind camerasLock, so callers may add
// and remove cameras concurrently with iteration over the ids.
type LiveCameras struct {
	log logs.Log

	camerasLock  sync.Mutex
	cameraFromID map[string]*camera.Camera
	latestFrames map[string]*camera.Frame

	// How long LatestFrame waits for a fresh frame before falling back
	// to the cached one.
	frameWait time.Duration
}

func NewLiveCameras(logger logs.Log) *LiveCameras {
	return &LiveCameras{
		log:          logger,
		cameraFromID: map[string]*camera.Camera{},
		latestFrames: map[string]*camera.Frame{},
		frameWait:    time.Second,
	}
}

// AddCamera constructs a camera around the device, starts its capture
// loop, and registers it. Returns ErrDuplicateCamera if the id already
// exists, or the camera's start error (eg camera.ErrDeviceUnavailable)
// if the device cannot be opened.
func (s *LiveCameras) AddCamera(id string, device camera.Device, opts camera.Options) error {
	s.camerasLock.Lock()
	if _, exists := s.cameraFromID[id]; exists {
		s.camerasLock.Unlock()
		return ErrDuplicateCamera
	}
	s.camerasLock.Unlock()

	cam := camera.NewCamera(s.log, id, device, opts)
	if err := cam.Start(); err != nil {
		return err
	}

	s.camerasLock.Lock()
	if _, exists := s.cameraFromID[id]; exists {
		// Somebody raced us while the device was opening
		s.camerasLock.Unlock()
		cam.Stop()
		return ErrDuplicateCamera
	}
	s.cameraFromID[id] = cam
	s.camerasLock.Unlock()
	s.log.Infof("Added camera %v", id)
	return nil
}

// RemoveCamera stops and unregisters the camera.
// Returns false if the id is unknown.
func (s *LiveCameras) RemoveCamera(id string) bool {
	s.camerasLock.Lock()
	cam := s.cameraFromID[id]
	delete(s.cameraFromID, id)
	delete(s.latestFrames, id)
	s.camerasLock.Unlock()
	if cam == nil {
		return false
	}
	cam.Stop()
	s.log.Infof("Removed camera %v", id)
	return true
}

// CameraFromID returns the running camera, or nil.
func (s *LiveCameras) CameraFromID(id string) *camera.Camera {
	s.camerasLock.Lock()
	defer s.camerasLock.Unlock()
	return s.cameraFromID[id]
}

// LatestFrame returns the most recent frame retrieved from the camera.
// If no new frame arrives within the wait window, the previously cached
// frame is returned (which may be nil). It never blocks indefinitely.
func (s *LiveCameras) LatestFrame(id string) *camera.Frame {
	s.camerasLock.Lock()
	cam := s.cameraFromID[id]
	s.camerasLock.Unlock()
	if cam == nil {
		return nil
	}

	frame := cam.ReadLatest(s.frameWait)

	s.camerasLock.Lock()
	defer s.camerasLock.Unlock()
	if frame != nil {
		s.latestFrames[id] = frame
	}
	return s.latestFrames[id]
}

// IDs returns the registered camera ids, sorted.
func (s *LiveCameras) IDs() []string {
	s.camerasLock.Lock()
	defer s.camerasLock.Unlock()
	ids := make([]string, 0, len(s.cameraFromID))
	for id := range s.cameraFromID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *LiveCameras) Count() int {
	s.camerasLock.Lock()
	defer s.camerasLock.Unlock()
	return len(s.cameraFromID)
}

// Info returns configuration and health counters for one camera, or nil
// for an unknown id.
func (s *LiveCameras) Info(id string) *Info {
	cam := s.CameraFromID(id)
	if cam == nil {
		return nil
	}
	opts := cam.Options()
	return &Info{
		ID:         id,
		Width:      opts.Width,
		Height:     opts.Height,
		FPS:        opts.FPS,
		State:      cam.State().String(),
		FrameCount: cam.FrameCount(),
		Failed:     cam.FailedReads(),
		Dropped:    cam.DroppedFrames(),
	}
}

// AllInfo returns Info for every registered camera, ordered by id.
func (s *LiveCameras) AllInfo() []*Info {
	infos := []*Info{}
	for _, id := range s.IDs() {
		if info := s.Info(id); info != nil {
			infos = append(infos, info)
		}
	}
	return infos
}

// StopAll stops and unregisters every camera.
func (s *LiveCameras) StopAll() {
	for _, id := range s.IDs() {
		s.RemoveCamera(id)
	}
	s.log.Infof("All cameras stopped")
}
