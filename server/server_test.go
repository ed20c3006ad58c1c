package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/areawatch/areawatch/server/config"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Cameras: []config.Camera{
			{ID: "cam1", Name: "Front", Device: "synthetic", Width: 64, Height: 48, FPS: 30},
		},
		Zones: []config.Zone{
			{
				ID:           "z1",
				Name:         "doorway",
				Kind:         "rectangle",
				Points:       []geom.Point{{X: 0, Y: 0}, {X: 40, Y: 40}},
				Enabled:      true,
				AlertOnEntry: true,
			},
		},
		Alerts:      config.Alerts{CooldownSeconds: 1, MaxAlertsPerMinute: 10},
		StoragePath: t.TempDir(),
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	cfg := testConfig(t)
	s, err := NewServer(logs.NewTestingLog(t), cfg, detect.NewNullDetector())
	require.NoError(t, err)
	ts := httptest.NewServer(s.setupHttpRoutes())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return s, ts
}

func get(t *testing.T, ts *httptest.Server, path string, out any) *http.Response {
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	j, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(j))
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestServerWiring(t *testing.T) {
	s, _ := newTestServer(t)
	require.Equal(t, 1, s.LiveCameras.Count())
	require.Len(t, s.Zones.All(), 1)
	require.NotNil(t, s.AlertDB)
}

func TestPingAndStats(t *testing.T) {
	_, ts := newTestServer(t)

	ping := map[string]any{}
	get(t, ts, "/api/ping", &ping)
	require.Contains(t, ping, "time")

	stats := map[string]any{}
	get(t, ts, "/api/stats", &stats)
	require.Contains(t, stats, "monitor")
	require.Contains(t, stats, "cameras")
}

func TestCameraAPI(t *testing.T) {
	s, ts := newTestServer(t)

	cams := []map[string]any{}
	get(t, ts, "/api/cameras", &cams)
	require.Len(t, cams, 1)

	info := map[string]any{}
	get(t, ts, "/api/camera/cam1/info", &info)
	require.Equal(t, "cam1", info["id"])

	resp := get(t, ts, "/api/camera/nosuch/info", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/api/camera", &config.Camera{ID: "cam2", Device: "synthetic", Width: 32, Height: 32, FPS: 30})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, s.LiveCameras.Count())

	req, err := http.NewRequest("DELETE", ts.URL+"/api/camera/cam2", nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	require.Equal(t, http.StatusOK, dresp.StatusCode)
	require.Equal(t, 1, s.LiveCameras.Count())
}

func TestDefaultFullFrameZone(t *testing.T) {
	// A config without zones watches the whole frame
	cfg := testConfig(t)
	cfg.Zones = nil
	s, err := NewServer(logs.NewTestingLog(t), cfg, detect.NewNullDetector())
	require.NoError(t, err)
	defer s.Shutdown()

	z := s.Zones.Get("default")
	require.NotNil(t, z)
	require.True(t, z.Enabled)
	require.True(t, z.AlertOnEntry)
	// Sized to the first camera (64x48)
	require.True(t, z.ContainsPoint(geom.Point{X: 32, Y: 24}))
	require.False(t, z.ContainsPoint(geom.Point{X: 70, Y: 24}))
}

func TestTrackerResetAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp := post(t, ts, "/api/camera/cam1/tracker/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts, "/api/camera/nosuch/tracker/reset", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatisticsAPI(t *testing.T) {
	s, ts := newTestServer(t)

	stats := map[string]any{}
	get(t, ts, "/api/stats?hours=48", &stats)
	require.Contains(t, stats, "frames")
	require.Contains(t, stats, "storage")

	s.Analytics.RecordZoneEntry("z1")
	zoneStats := []map[string]any{}
	get(t, ts, "/api/stats/zones", &zoneStats)
	require.Len(t, zoneStats, 1)
	require.Equal(t, "z1", zoneStats[0]["zoneID"])

	single := map[string]any{}
	get(t, ts, "/api/stats/zones?zoneID=z1", &single)
	require.Equal(t, float64(1), single["totalEntries"])

	resp := get(t, ts, "/api/stats/zones?zoneID=nosuch", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.Analytics.RecordFrame(time.Now(), 2, 1, []float32{0.9})
	trend := []map[string]any{}
	get(t, ts, "/api/stats/detections?minutes=5", &trend)
	require.Len(t, trend, 1)
	require.Equal(t, float64(2), trend[0]["count"])

	tracks := []map[string]any{}
	get(t, ts, "/api/stats/tracks", &tracks)
	require.Empty(t, tracks)
}

func TestZoneAPI(t *testing.T) {
	s, ts := newTestServer(t)

	newZone := map[string]any{
		"id":      "z2",
		"name":    "dock",
		"kind":    "circle",
		"points":  []map[string]float32{{"x": 50, "y": 50}, {"x": 100, "y": 50}},
		"enabled": true,
	}
	resp := post(t, ts, "/api/zone", newZone)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, s.Zones.All(), 2)

	zone := map[string]any{}
	get(t, ts, "/api/zone/z2", &zone)
	require.Equal(t, "circle", zone["kind"])

	resp = post(t, ts, "/api/zone", map[string]any{"id": "bad", "kind": "hexagon"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest("DELETE", ts.URL+"/api/zone/z2", nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	require.Equal(t, http.StatusOK, dresp.StatusCode)
	require.Len(t, s.Zones.All(), 1)

	oresp := get(t, ts, "/api/zones/overlay?width=64&height=48", nil)
	require.Equal(t, http.StatusOK, oresp.StatusCode)
	require.Equal(t, "image/png", oresp.Header.Get("Content-Type"))
}

func TestAlertAPI(t *testing.T) {
	s, ts := newTestServer(t)

	alert := s.Gate.CreateAlert("test alert", "warning", "z1", 1, true)
	require.NotNil(t, alert)

	got := []map[string]any{}
	get(t, ts, "/api/alerts", &got)
	require.Len(t, got, 1)

	unack := []map[string]any{}
	get(t, ts, "/api/alerts/unacknowledged", &unack)
	require.Len(t, unack, 1)

	resp := post(t, ts, fmt.Sprintf("/api/alert/%v/acknowledge", alert.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get(t, ts, "/api/alerts/unacknowledged", &unack)
	require.Empty(t, unack)

	resp = post(t, ts, "/api/alert/alert_bogus/acknowledge", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
