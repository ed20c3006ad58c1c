package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/server/alertdb"
	"github.com/areawatch/areawatch/server/alerts"
	"github.com/areawatch/areawatch/server/analytics"
	"github.com/areawatch/areawatch/server/camera"
	"github.com/areawatch/areawatch/server/config"
	"github.com/areawatch/areawatch/server/livecameras"
	"github.com/areawatch/areawatch/server/monitor"
	"github.com/areawatch/areawatch/server/notifications"
	"github.com/areawatch/areawatch/server/zones"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
)

type Server struct {
	Log         logs.Log
	LiveCameras *livecameras.LiveCameras
	Zones       *zones.Index
	Gate        *alerts.Gate
	Monitor     *monitor.Monitor
	AlertDB     *alertdb.AlertDB // nil if persistence is disabled
	Analytics   *analytics.Engine

	httpServer *http.Server
	wsUpgrader websocket.Upgrader
}

// NewServer builds the full pipeline from config. detector is the
// external object detector to run on the camera streams.
func NewServer(logger logs.Log, cfg *config.Config, detector detect.Detector) (*Server, error) {
	live := livecameras.NewLiveCameras(logger)
	zoneIndex := zones.NewIndex(logger)

	var notifier alerts.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = notifications.NewWebhookNotifier(logger, cfg.Alerts.WebhookURL, cfg.Alerts.WebhookToken)
	}
	gate := alerts.NewGate(logger, alerts.Options{
		Cooldown:           time.Duration(cfg.Alerts.CooldownSeconds) * time.Second,
		MaxAlertsPerMinute: cfg.Alerts.MaxAlertsPerMinute,
	}, notifier)

	var alertDB *alertdb.AlertDB
	if cfg.StoragePath != "" {
		db, err := alertdb.Open(logger, cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		alertDB = db
	}

	for _, zc := range cfg.Zones {
		zone, err := zc.ToZone()
		if err != nil {
			return nil, err
		}
		zoneIndex.Add(zone)
	}
	if len(cfg.Zones) == 0 {
		// Nobody has drawn zones yet, so watch the whole frame
		w, h := defaultZoneSize(cfg)
		zoneIndex.Add(zones.NewFullFrameZone("default", "Full Frame", w, h))
	}

	for _, cc := range cfg.Cameras {
		device, err := makeDevice(cc)
		if err != nil {
			return nil, err
		}
		opts := camera.Options{Width: cc.Width, Height: cc.Height, FPS: cc.FPS}
		if err := live.AddCamera(cc.ID, device, opts); err != nil {
			// A dead camera at startup is not fatal to the rest
			logger.Errorf("Failed to start camera %v: %v", cc.ID, err)
		}
	}

	analyticsEngine := analytics.NewEngine(logger, 0)
	mon := monitor.NewMonitor(logger, live, detector, zoneIndex, gate, alertDB, analyticsEngine, monitor.DefaultOptions())

	return &Server{
		Log:         logger,
		LiveCameras: live,
		Zones:       zoneIndex,
		Gate:        gate,
		Monitor:     mon,
		AlertDB:     alertDB,
		Analytics:   analyticsEngine,
	}, nil
}

// defaultZoneSize is the frame size of the first configured camera,
// falling back to the capture defaults.
func defaultZoneSize(cfg *config.Config) (width, height int) {
	def := camera.DefaultOptions()
	width, height = def.Width, def.Height
	if len(cfg.Cameras) != 0 {
		if cfg.Cameras[0].Width > 0 {
			width = cfg.Cameras[0].Width
		}
		if cfg.Cameras[0].Height > 0 {
			height = cfg.Cameras[0].Height
		}
	}
	return
}

func makeDevice(cc config.Camera) (camera.Device, error) {
	switch cc.Device {
	case "", "synthetic":
		return &camera.SyntheticDevice{Fill: 32}, nil
	}
	return nil, fmt.Errorf("Unknown device '%v' for camera %v", cc.Device, cc.ID)
}

// Start begins analysis on all cameras.
func (s *Server) Start() {
	s.Monitor.StartAll()
}

// ListenHTTP blocks until the server is shut down.
// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	router := s.setupHttpRoutes()
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: router,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP listener, the analysis pipelines, and the
// cameras, in that order.
func (s *Server) Shutdown() {
	s.Log.Infof("Server shutting down")
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	s.Monitor.Close()
	s.LiveCameras.StopAll()
	if s.AlertDB != nil {
		s.AlertDB.Close()
	}
	s.Log.Infof("Server shutdown complete")
}

// RunCleanupLoop deletes old alerts and screenshots once a day, until
// ctx is canceled. No-op if retention or persistence is disabled.
func (s *Server) RunCleanupLoop(ctx context.Context, retentionDays int) {
	if s.AlertDB == nil || retentionDays <= 0 {
		return
	}
	maxAge := time.Duration(retentionDays) * 24 * time.Hour
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed, err := s.AlertDB.PurgeOlderThan(maxAge)
			if err != nil {
				s.Log.Errorf("Alert retention cleanup failed: %v", err)
			} else if removed != 0 {
				s.Log.Infof("Alert retention cleanup removed %v alerts", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}
