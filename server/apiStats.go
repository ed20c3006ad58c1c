package server

import (
	"net/http"
	"time"

	"github.com/areawatch/areawatch/server/alertdb"
	"github.com/areawatch/areawatch/server/alerts"
	"github.com/areawatch/areawatch/server/analytics"
	"github.com/areawatch/areawatch/server/livecameras"
	"github.com/areawatch/areawatch/server/monitor"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Aggregate statistics of the whole system. The storage section is
// windowed by the "hours" query parameter (default 24), and omitted
// when persistence is disabled.
func (s *Server) httpStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type statsJSON struct {
		Monitor monitor.Statistics     `json:"monitor"`
		Alerts  alerts.Statistics      `json:"alerts"`
		Frames  analytics.FrameSummary `json:"frames"`
		Cameras []*livecameras.Info    `json:"cameras"`
		Storage *alertdb.Statistics    `json:"storage,omitempty"`
	}
	out := &statsJSON{
		Monitor: s.Monitor.GetStatistics(),
		Alerts:  s.Gate.Statistics(),
		Frames:  s.Analytics.FrameStatistics(),
		Cameras: s.LiveCameras.AllInfo(),
	}
	if s.AlertDB != nil {
		hours := www.QueryInt(r, "hours")
		if hours <= 0 {
			hours = 24
		}
		now := time.Now()
		storage, err := s.AlertDB.GetStatistics(now.Add(-time.Duration(hours)*time.Hour), now)
		www.Check(err)
		out.Storage = storage
	}
	www.SendJSON(w, out)
}

// Zone activity counters, for one zone or all of them.
func (s *Server) httpStatsZones(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if zoneID := www.QueryValue(r, "zoneID"); zoneID != "" {
		z, ok := s.Analytics.ZoneStatistics(zoneID)
		if !ok {
			www.PanicBadRequestf("No statistics for zone '%v'", zoneID)
		}
		www.SendJSON(w, &z)
		return
	}
	www.SendJSON(w, s.Analytics.AllZoneStatistics())
}

// Detection counts over the trailing "minutes" window (default 60).
func (s *Server) httpStatsDetections(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	minutes := www.QueryInt(r, "minutes")
	if minutes <= 0 {
		minutes = 60
	}
	www.SendJSON(w, s.Analytics.DetectionTrend(time.Duration(minutes)*time.Minute))
}

// Movement summaries of recently seen tracks.
func (s *Server) httpStatsTracks(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Analytics.AllTrackStatistics())
}
