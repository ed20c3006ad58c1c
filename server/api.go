package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() *httprouter.Router {
	router := httprouter.New()

	handle := func(method, route string, handler httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handler)
	}

	// Mutating endpoints get a per-endpoint rate limit, keyed by
	// client IP.
	ratelimited := func(method, route string, handler httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handler(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/stats", s.httpStats)
	handle("GET", "/api/stats/zones", s.httpStatsZones)
	handle("GET", "/api/stats/detections", s.httpStatsDetections)
	handle("GET", "/api/stats/tracks", s.httpStatsTracks)

	handle("GET", "/api/cameras", s.httpCameraList)
	handle("GET", "/api/camera/:cameraID/info", s.httpCameraInfo)
	handle("GET", "/api/camera/:cameraID/latest", s.httpCameraLatestImage)
	ratelimited("POST", "/api/camera", s.httpCameraAdd, 10, time.Minute)
	ratelimited("POST", "/api/camera/:cameraID/tracker/reset", s.httpCameraTrackerReset, 30, time.Minute)
	ratelimited("DELETE", "/api/camera/:cameraID", s.httpCameraRemove, 10, time.Minute)

	handle("GET", "/api/zones", s.httpZoneList)
	handle("GET", "/api/zone/:zoneID", s.httpZoneGet)
	handle("GET", "/api/zones/overlay", s.httpZoneOverlay)
	ratelimited("POST", "/api/zone", s.httpZoneSet, 30, time.Minute)
	ratelimited("DELETE", "/api/zone/:zoneID", s.httpZoneRemove, 30, time.Minute)

	handle("GET", "/api/alerts", s.httpAlertList)
	handle("GET", "/api/alerts/unacknowledged", s.httpAlertUnacknowledged)
	handle("POST", "/api/alert/:alertID/acknowledge", s.httpAlertAcknowledge)
	handle("GET", "/api/alert/:alertID/screenshots", s.httpAlertScreenshots)

	handle("GET", "/api/ws/analysis", s.httpAnalysisWebSocket)
	handle("GET", "/api/ws/analysis/:cameraID", s.httpAnalysisWebSocket)

	return router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{Time: time.Now().Unix()})
}
