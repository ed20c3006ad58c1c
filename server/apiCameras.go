package server

import (
	"net/http"

	"github.com/areawatch/areawatch/server/camera"
	"github.com/areawatch/areawatch/server/config"
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpCameraList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.LiveCameras.AllInfo())
}

func (s *Server) httpCameraInfo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("cameraID")
	info := s.LiveCameras.Info(id)
	if info == nil {
		www.PanicBadRequestf("Unknown camera '%v'", id)
	}
	www.SendJSON(w, info)
}

func (s *Server) httpCameraAdd(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cfg := config.Camera{}
	www.ReadJSON(w, r, &cfg, 1024*1024)
	if cfg.ID == "" {
		www.PanicBadRequestf("Camera id is required")
	}
	device, err := makeDevice(cfg)
	www.CheckClient(err)
	opts := camera.Options{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}
	www.Check(s.LiveCameras.AddCamera(cfg.ID, device, opts))
	s.Monitor.StartCamera(cfg.ID)
	s.Log.Infof("Added camera %v", cfg.ID)
	www.SendOK(w)
}

func (s *Server) httpCameraRemove(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("cameraID")
	s.Monitor.StopCamera(id)
	if !s.LiveCameras.RemoveCamera(id) {
		www.PanicBadRequestf("Unknown camera '%v'", id)
	}
	s.Log.Infof("Removed camera %v", id)
	www.SendOK(w)
}

// Discards the camera's identity state. Tracks get fresh ids on the
// next analyzed frame.
func (s *Server) httpCameraTrackerReset(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("cameraID")
	if s.LiveCameras.CameraFromID(id) == nil {
		www.PanicBadRequestf("Unknown camera '%v'", id)
	}
	s.Monitor.ResetTracker(id)
	s.Log.Infof("Tracker reset for camera %v", id)
	www.SendOK(w)
}

// Latest frame of a camera, as JPEG.
func (s *Server) httpCameraLatestImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("cameraID")
	if s.LiveCameras.CameraFromID(id) == nil {
		www.PanicBadRequestf("Unknown camera '%v'", id)
	}
	frame := s.LiveCameras.LatestFrame(id)
	if frame == nil {
		www.PanicBadRequestf("No frame available yet for camera '%v'", id)
	}
	img := cimg.WrapImage(frame.Width, frame.Height, cimg.PixelFormatRGB, frame.Image.Pixels)
	jpg, err := cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling420, 85, 0))
	www.Check(err)
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}
