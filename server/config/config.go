package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/areawatch/areawatch/server/zones"
)

type Camera struct {
	ID     string `json:"id"`     // Unique camera id, eg "front-gate"
	Name   string `json:"name"`   // Friendly name
	Device string `json:"device"` // Device reference, eg "synthetic" or a capture device path
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps"`
}

type Zone struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         string       `json:"kind"` // polygon, rectangle, circle
	Points       []geom.Point `json:"points"`
	Enabled      bool         `json:"enabled"`
	AlertOnEntry bool         `json:"alertOnEntry"`
	AlertOnExit  bool         `json:"alertOnExit"`
	Color        [3]uint8     `json:"color"`
}

type Alerts struct {
	CooldownSeconds    int    `json:"cooldownSeconds"`    // Minimum seconds between accepted alerts
	MaxAlertsPerMinute int    `json:"maxAlertsPerMinute"` // Sliding window cap
	WebhookURL         string `json:"webhookURL"`         // Optional alert webhook
	WebhookToken       string `json:"webhookToken"`       // Bearer token for the webhook
}

type Config struct {
	Cameras       []Camera `json:"cameras"`
	Zones         []Zone   `json:"zones"`
	Alerts        Alerts   `json:"alerts"`
	StoragePath   string   `json:"storagePath"`   // Path to alert DB and screenshot storage
	RetentionDays int      `json:"retentionDays"` // Delete alerts and screenshots older than this. 0 disables cleanup.
}

func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = "areawatch.json"
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	return cfg, nil
}

// ToZone converts a config zone into an index zone.
func (z *Zone) ToZone() (*zones.Zone, error) {
	kind, err := zones.ParseShapeKind(z.Kind)
	if err != nil {
		return nil, fmt.Errorf("Zone %v: %w", z.ID, err)
	}
	return &zones.Zone{
		ID:           z.ID,
		Name:         z.Name,
		Kind:         kind,
		Points:       z.Points,
		Enabled:      z.Enabled,
		AlertOnEntry: z.AlertOnEntry,
		AlertOnExit:  z.AlertOnExit,
		Color:        zones.RGB{R: z.Color[0], G: z.Color[1], B: z.Color[2]},
	}, nil
}
