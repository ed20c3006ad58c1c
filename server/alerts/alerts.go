package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Alert is one accepted trigger.
// The only mutation after creation is acknowledgement.
type Alert struct {
	ID             string    `json:"id"`
	Message        string    `json:"message"`
	Level          Level     `json:"level"`
	Time           time.Time `json:"time"`
	ZoneID         string    `json:"zoneID,omitempty"`
	DetectionCount int       `json:"detectionCount"`
	Acknowledged   bool      `json:"acknowledged"`
}

// Notifier is an external side effect fired on acceptance (sound, push,
// webhook). A notifier failure never prevents the alert from being
// recorded.
type Notifier interface {
	Notify(alert *Alert) error
}

type Statistics struct {
	Total          int `json:"total"`
	Unacknowledged int `json:"unacknowledged"`
	Critical       int `json:"critical"`
	Warning        int `json:"warning"`
	Info           int `json:"info"`
}

// The trailing window used for the rate limit
const rateWindow = 60 * time.Second

type Options struct {
	Cooldown           time.Duration // Minimum interval between accepted alerts (default 5s)
	MaxAlertsPerMinute int           // Cap on accepted alerts in any trailing 60s window (default 10)
}

func DefaultOptions() Options {
	return Options{
		Cooldown:           5 * time.Second,
		MaxAlertsPerMinute: 10,
	}
}

// Gate converts candidate triggers into a throttled stream of alerts.
// Gating state and alert history are process-global per Gate instance;
// everything is serialized behind one mutex, so a single Gate may be
// shared by all camera pipelines for cross-camera dedup.
type Gate struct {
	log      logs.Log
	opts     Options
	notifier Notifier

	lock          sync.Mutex
	alerts        []*Alert // Insertion order == chronological order
	lastAlertTime time.Time
	alertTimes    []time.Time // Accepted-alert times within the trailing window

	timeNow func() time.Time // Overridden by tests
}

func NewGate(logger logs.Log, opts Options, notifier Notifier) *Gate {
	def := DefaultOptions()
	if opts.Cooldown <= 0 {
		opts.Cooldown = def.Cooldown
	}
	if opts.MaxAlertsPerMinute <= 0 {
		opts.MaxAlertsPerMinute = def.MaxAlertsPerMinute
	}
	return &Gate{
		log:      logger,
		opts:     opts,
		notifier: notifier,
		timeNow:  time.Now,
	}
}

// CreateAlert evaluates the gate and, on acceptance, records and
// returns a new alert. Returns nil when the trigger is suppressed by
// the cooldown or the rate limit. Suppression is normal operation, not
// an error. force bypasses the gate entirely.
func (g *Gate) CreateAlert(message string, level Level, zoneID string, detectionCount int, force bool) *Alert {
	g.lock.Lock()
	defer g.lock.Unlock()

	now := g.timeNow()
	if !force && !g.canAlert(now) {
		return nil
	}

	alert := &Alert{
		ID:             fmt.Sprintf("alert_%v", now.UnixMilli()),
		Message:        message,
		Level:          level,
		Time:           now,
		ZoneID:         zoneID,
		DetectionCount: detectionCount,
	}
	g.alerts = append(g.alerts, alert)
	g.lastAlertTime = now
	g.alertTimes = append(g.alertTimes, now)

	if g.notifier != nil {
		if err := g.notifier.Notify(alert); err != nil {
			g.log.Errorf("Alert notifier failed: %v", err)
		}
	}

	g.log.Infof("Alert created: %v (level %v)", message, level)
	return alert
}

// canAlert applies cooldown and the sliding-window rate limit.
// Caller holds the lock.
func (g *Gate) canAlert(now time.Time) bool {
	if !g.lastAlertTime.IsZero() && now.Sub(g.lastAlertTime) < g.opts.Cooldown {
		return false
	}

	// Prune window entries older than 60 seconds
	kept := g.alertTimes[:0]
	for _, ts := range g.alertTimes {
		if now.Sub(ts) < rateWindow {
			kept = append(kept, ts)
		}
	}
	g.alertTimes = kept

	return len(g.alertTimes) < g.opts.MaxAlertsPerMinute
}

// Acknowledge marks the alert. Returns false if the id is unknown.
func (g *Gate) Acknowledge(id string) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	for _, a := range g.alerts {
		if a.ID == id {
			a.Acknowledged = true
			g.log.Infof("Alert acknowledged: %v", id)
			return true
		}
	}
	return false
}

// Get returns the alert with the given id, or nil.
func (g *Gate) Get(id string) *Alert {
	g.lock.Lock()
	defer g.lock.Unlock()
	for _, a := range g.alerts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Recent returns the most recent alerts, oldest first, at most limit.
func (g *Gate) Recent(limit int) []*Alert {
	g.lock.Lock()
	defer g.lock.Unlock()
	start := len(g.alerts) - limit
	if start < 0 {
		start = 0
	}
	return append([]*Alert{}, g.alerts[start:]...)
}

// Unacknowledged returns all unacknowledged alerts, oldest first.
func (g *Gate) Unacknowledged() []*Alert {
	g.lock.Lock()
	defer g.lock.Unlock()
	out := []*Alert{}
	for _, a := range g.alerts {
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out
}

// ByLevel returns all alerts at the given level, oldest first.
func (g *Gate) ByLevel(level Level) []*Alert {
	g.lock.Lock()
	defer g.lock.Unlock()
	out := []*Alert{}
	for _, a := range g.alerts {
		if a.Level == level {
			out = append(out, a)
		}
	}
	return out
}

func (g *Gate) Statistics() Statistics {
	g.lock.Lock()
	defer g.lock.Unlock()
	stats := Statistics{Total: len(g.alerts)}
	for _, a := range g.alerts {
		if !a.Acknowledged {
			stats.Unacknowledged++
		}
		switch a.Level {
		case LevelCritical:
			stats.Critical++
		case LevelWarning:
			stats.Warning++
		case LevelInfo:
			stats.Info++
		}
	}
	return stats
}

// ClearOld removes alerts older than maxAge and returns the number removed.
func (g *Gate) ClearOld(maxAge time.Duration) int {
	g.lock.Lock()
	defer g.lock.Unlock()
	now := g.timeNow()
	kept := []*Alert{}
	for _, a := range g.alerts {
		if now.Sub(a.Time) < maxAge {
			kept = append(kept, a)
		}
	}
	removed := len(g.alerts) - len(kept)
	g.alerts = kept
	if removed > 0 {
		g.log.Infof("Cleared %v old alerts", removed)
	}
	return removed
}

// ClearAll empties the alert list.
func (g *Gate) ClearAll() {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.alerts = nil
	g.log.Infof("All alerts cleared")
}
