package monitor

import (
	"fmt"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/server/alertdb"
	"github.com/areawatch/areawatch/server/alerts"
	"github.com/areawatch/areawatch/server/camera"
	"github.com/bmharper/cimg/v2"
)

// analyzeFrame runs the full pipeline on one frame: detect, track,
// evaluate zones, fire alerts, persist, publish to watchers.
func (m *Monitor) analyzeFrame(p *pipeline, frame *camera.Frame) {
	detections := m.detect(p, frame)

	p.tracker.Update(detections)
	entities := p.tracker.All()
	p.entityCount.Store(int64(len(entities)))

	state := &AnalysisState{
		CameraID:  p.cameraID,
		FrameSeq:  frame.Seq,
		FrameTime: frame.CapturedAt,
		Objects:   make([]TrackedObject, 0, len(entities)),
	}

	// Zone membership for this frame. Only confidently-active tracks
	// count towards zone occupancy.
	newMembership := map[int64]map[string]bool{}
	occupancy := map[string]int{}
	zoneConfidence := map[string]float32{}
	for _, e := range entities {
		var inZones []string
		if !e.IsStale() {
			inZones = m.zones.ContainingZones(e.Centroid)
			zoneSet := make(map[string]bool, len(inZones))
			for _, zid := range inZones {
				zoneSet[zid] = true
				occupancy[zid]++
				zoneConfidence[zid] += e.Confidence
			}
			newMembership[e.TrackID] = zoneSet
		}
		state.Objects = append(state.Objects, TrackedObject{
			ID:         e.TrackID,
			Class:      e.Class,
			Box:        e.Box,
			Centroid:   e.Centroid,
			Confidence: e.Confidence,
			Zones:      inZones,
			Genuine:    !e.IsStale(),
		})
	}

	m.evaluateTransitions(p, frame, newMembership, occupancy)

	if m.analytics != nil {
		confidences := make([]float32, len(detections))
		for i, d := range detections {
			confidences[i] = d.Confidence
		}
		m.analytics.RecordFrame(frame.CapturedAt, len(detections), len(entities), confidences)
		for zid, n := range occupancy {
			m.analytics.RecordZoneOccupancy(zid, n, zoneConfidence[zid]/float32(n))
		}
		// Zones this camera emptied since the previous frame drop to zero
		for _, prev := range p.zonesByTrack {
			for zid := range prev {
				if _, occupied := occupancy[zid]; !occupied {
					m.analytics.RecordZoneOccupancy(zid, 0, 0)
					occupancy[zid] = 0
				}
			}
		}
		for _, e := range entities {
			if !e.IsStale() {
				m.analytics.RecordTrack(e.TrackID, frame.CapturedAt, e.Centroid)
			}
		}
	}

	p.zonesByTrack = newMembership

	if m.db != nil && len(detections) != 0 {
		objects := make([]alertdb.DetectedObject, 0, len(detections))
		for _, d := range detections {
			objects = append(objects, alertdb.DetectedObject{
				Class:      d.Class,
				Confidence: d.Confidence,
				Box:        [4]float32{d.Box.X, d.Box.Y, d.Box.X2(), d.Box.Y2()},
			})
		}
		if err := m.db.AddDetection(p.cameraID, frame.CapturedAt, objects); err != nil {
			m.Log.Errorf("Failed to record detections for camera %v: %v", p.cameraID, err)
		}
	}

	m.framesAnalyzed.Add(1)
	m.sendToWatchers(state)
}

// detect runs the shared detector on the frame. A detector failure
// degrades to zero detections.
func (m *Monitor) detect(p *pipeline, frame *camera.Frame) []detect.Detection {
	m.detectorLock.Lock()
	detections, err := m.detector.Detect(frame.Image)
	m.detectorLock.Unlock()
	if err != nil {
		m.detectorFailures.Add(1)
		if time.Since(p.lastDetectErrAt) > 15*time.Second {
			m.Log.Errorf("Error detecting objects on camera %v: %v", p.cameraID, err)
			p.lastDetectErrAt = time.Now()
		}
		return nil
	}
	return detections
}

// evaluateTransitions compares this frame's zone membership against the
// previous frame's, counts the transitions, and fires entry/exit alerts
// through the gate.
func (m *Monitor) evaluateTransitions(p *pipeline, frame *camera.Frame, newMembership map[int64]map[string]bool, occupancy map[string]int) {
	entered := map[string]bool{}
	exited := map[string]bool{}

	for trackID, zoneSet := range newMembership {
		prev := p.zonesByTrack[trackID]
		for zid := range zoneSet {
			if !prev[zid] {
				entered[zid] = true
			}
		}
	}
	for trackID, prev := range p.zonesByTrack {
		zoneSet := newMembership[trackID]
		for zid := range prev {
			if !zoneSet[zid] {
				exited[zid] = true
			}
		}
	}

	if m.analytics != nil {
		for zid := range entered {
			m.analytics.RecordZoneEntry(zid)
		}
		for zid := range exited {
			m.analytics.RecordZoneExit(zid)
		}
	}

	for zid := range entered {
		zone := m.zones.Get(zid)
		if zone == nil || !zone.AlertOnEntry {
			continue
		}
		msg := fmt.Sprintf("%v object(s) in zone %v (camera %v)", occupancy[zid], zone.Name, p.cameraID)
		m.fireAlert(p, frame, msg, m.opts.EntryAlertLevel, zid, occupancy[zid])
	}
	for zid := range exited {
		zone := m.zones.Get(zid)
		if zone == nil || !zone.AlertOnExit {
			continue
		}
		msg := fmt.Sprintf("Object left zone %v (camera %v)", zone.Name, p.cameraID)
		m.fireAlert(p, frame, msg, m.opts.ExitAlertLevel, zid, occupancy[zid])
	}
}

func (m *Monitor) fireAlert(p *pipeline, frame *camera.Frame, message string, level alerts.Level, zoneID string, count int) {
	alert := m.gate.CreateAlert(message, level, zoneID, count, false)
	if alert == nil {
		// Suppressed by cooldown or rate limit
		return
	}
	m.alertsFired.Add(1)
	if m.db == nil {
		return
	}
	if err := m.db.AddAlert(alert); err != nil {
		m.Log.Errorf("Failed to record alert %v: %v", alert.ID, err)
	}
	if m.opts.EnableScreenshots && time.Since(p.lastScreenshotAt) >= m.opts.ScreenshotCooldown {
		if err := m.saveScreenshot(p, frame, alert.ID); err != nil {
			m.Log.Errorf("Failed to save screenshot for alert %v: %v", alert.ID, err)
		} else {
			p.lastScreenshotAt = time.Now()
		}
	}
}

// saveScreenshot JPEG-compresses the triggering frame and stores it.
func (m *Monitor) saveScreenshot(p *pipeline, frame *camera.Frame, alertID string) error {
	img := cimg.WrapImage(frame.Width, frame.Height, cimg.PixelFormatRGB, frame.Image.Pixels)
	jpg, err := cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling420, 85, 0))
	if err != nil {
		return err
	}
	_, err = m.db.AddScreenshot(alertID, p.cameraID, frame.CapturedAt, jpg)
	return err
}

// ResetTracker clears the identity state of one camera's pipeline.
// Safe no-op if the camera is not being analyzed.
func (m *Monitor) ResetTracker(cameraID string) {
	m.pipelinesLock.Lock()
	p := m.pipelines[cameraID]
	m.pipelinesLock.Unlock()
	if p == nil {
		return
	}
	// The tracker is owned by the pipeline goroutine. Stop and restart
	// the pipeline to hand ownership over safely.
	if m.StopCamera(cameraID) {
		m.StartCamera(cameraID)
	}
}

// TrackerSnapshot returns the entity count of one camera's tracker, as
// of its most recently analyzed frame. The tracker is owned by the
// pipeline goroutine, so we read the published count instead of
// touching the tracker from here.
func (m *Monitor) TrackerSnapshot(cameraID string) (entityCount int, ok bool) {
	m.pipelinesLock.Lock()
	defer m.pipelinesLock.Unlock()
	p := m.pipelines[cameraID]
	if p == nil {
		return 0, false
	}
	return int(p.entityCount.Load()), true
}
