package server

import (
	"net/http"

	"github.com/areawatch/areawatch/server/alerts"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpAlertList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := www.QueryInt(r, "limit")
	if limit <= 0 {
		limit = 50
	}
	if level := www.QueryValue(r, "level"); level != "" {
		www.SendJSON(w, s.Gate.ByLevel(alerts.Level(level)))
		return
	}
	www.SendJSON(w, s.Gate.Recent(limit))
}

func (s *Server) httpAlertUnacknowledged(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Gate.Unacknowledged())
}

func (s *Server) httpAlertAcknowledge(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("alertID")
	if !s.Gate.Acknowledge(id) {
		www.PanicBadRequestf("Unknown alert '%v'", id)
	}
	if s.AlertDB != nil {
		if err := s.AlertDB.SetAcknowledged(id); err != nil {
			s.Log.Errorf("Failed to persist acknowledgement of alert %v: %v", id, err)
		}
	}
	www.SendOK(w)
}

func (s *Server) httpAlertScreenshots(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.AlertDB == nil {
		www.PanicBadRequestf("Alert persistence is disabled")
	}
	recs, err := s.AlertDB.ScreenshotsForAlert(params.ByName("alertID"))
	www.Check(err)
	www.SendJSON(w, recs)
}
