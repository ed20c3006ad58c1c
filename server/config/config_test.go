package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/areawatch/areawatch/server/zones"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	raw := `{
		"cameras": [{"id": "cam1", "name": "Front", "device": "synthetic", "width": 640, "height": 480, "fps": 15}],
		"zones": [{"id": "z1", "name": "gate", "kind": "polygon", "points": [{"x":0,"y":0},{"x":100,"y":0},{"x":100,"y":100}], "enabled": true, "alertOnEntry": true, "color": [255,0,0]}],
		"alerts": {"cooldownSeconds": 5, "maxAlertsPerMinute": 10, "webhookURL": "http://example.com/hook"},
		"storagePath": "/tmp/areawatch",
		"retentionDays": 7
	}`
	fn := filepath.Join(t.TempDir(), "areawatch.json")
	require.NoError(t, os.WriteFile(fn, []byte(raw), 0644))

	cfg, err := LoadConfig(fn)
	require.NoError(t, err)
	require.Len(t, cfg.Cameras, 1)
	require.Equal(t, 15, cfg.Cameras[0].FPS)
	require.Equal(t, 7, cfg.RetentionDays)
	require.Equal(t, "http://example.com/hook", cfg.Alerts.WebhookURL)

	zone, err := cfg.Zones[0].ToZone()
	require.NoError(t, err)
	require.Equal(t, zones.ShapePolygon, zone.Kind)
	require.Equal(t, uint8(255), zone.Color.R)
	require.True(t, zone.AlertOnEntry)

	_, err = (&Zone{ID: "bad", Kind: "hexagon"}).ToZone()
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
