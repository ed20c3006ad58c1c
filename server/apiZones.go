package server

import (
	"image/png"
	"net/http"

	"github.com/areawatch/areawatch/server/config"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpZoneList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Zones.All())
}

func (s *Server) httpZoneGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("zoneID")
	zone := s.Zones.Get(id)
	if zone == nil {
		www.PanicBadRequestf("Unknown zone '%v'", id)
	}
	www.SendJSON(w, zone)
}

// Create or update a zone.
func (s *Server) httpZoneSet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	zc := config.Zone{}
	www.ReadJSON(w, r, &zc, 1024*1024)
	if zc.ID == "" {
		www.PanicBadRequestf("Zone id is required")
	}
	zone, err := zc.ToZone()
	www.CheckClient(err)
	s.Zones.Add(zone)
	www.SendOK(w)
}

func (s *Server) httpZoneRemove(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("zoneID")
	if !s.Zones.Remove(id) {
		www.PanicBadRequestf("Unknown zone '%v'", id)
	}
	www.SendOK(w)
}

// Renders all enabled zones onto a transparent canvas, as PNG.
// Intended to be composited over a camera image by the client.
func (s *Server) httpZoneOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	width := www.QueryInt(r, "width")
	height := www.QueryInt(r, "height")
	if width <= 0 || height <= 0 {
		www.PanicBadRequestf("width and height query parameters are required")
	}
	img := s.Zones.RenderOverlay(width, height)
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/png")
	www.Check(png.Encode(w, img))
}
