package server

import (
	"net/http"

	"github.com/areawatch/areawatch/server/monitor"
	"github.com/julienschmidt/httprouter"
)

// Streams AnalysisState over a websocket, one JSON text message per
// analyzed frame. With a cameraID route parameter, only that camera's
// results are sent; without it, all cameras.
func (s *Server) httpAnalysisWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	cameraID := params.ByName("cameraID")

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Analysis websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var states chan *monitor.AnalysisState
	if cameraID != "" {
		states = s.Monitor.AddWatcher(cameraID)
		defer s.Monitor.RemoveWatcher(cameraID, states)
	} else {
		states = s.Monitor.AddWatcherAllCameras()
		defer s.Monitor.RemoveWatcherAllCameras(states)
	}

	s.Log.Infof("Analysis websocket started (camera '%v')", cameraID)

	// Reader goroutine. Its only job is to notice the client going away.
	closed := make(chan bool)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	for {
		select {
		case state := <-states:
			if err := conn.WriteJSON(state); err != nil {
				s.Log.Infof("Analysis websocket closed: %v", err)
				return
			}
		case <-closed:
			s.Log.Infof("Analysis websocket client disconnected")
			return
		}
	}
}
