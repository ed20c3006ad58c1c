// Package analytics keeps sliding-window statistics of the analysis
// pipeline: per-frame detection counts, per-zone activity, and per-track
// movement. All history lives in fixed-capacity ring buffers, so memory
// stays bounded no matter how long the system runs.
package analytics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
)

const (
	// Frames kept in the sliding window
	DefaultWindowSize = 512

	// Positions kept per track
	trackPositionWindow = 64

	// Tracks idle longer than this get pruned
	maxIdleTrackAge = time.Minute
)

// One analyzed frame's contribution to the window.
type FrameSample struct {
	Time           time.Time `json:"time"`
	DetectionCount int       `json:"detectionCount"`
	TrackCount     int       `json:"trackCount"`
	AvgConfidence  float32   `json:"avgConfidence"`
}

// Aggregates over the frames currently in the window.
type FrameSummary struct {
	TotalFrames   int64   `json:"totalFrames"` // Lifetime count, not windowed
	WindowFrames  int     `json:"windowFrames"`
	AvgDetections float32 `json:"avgDetections"`
	MaxDetections int     `json:"maxDetections"`
	AvgTracks     float32 `json:"avgTracks"`
	MaxTracks     int     `json:"maxTracks"`
	AvgConfidence float32 `json:"avgConfidence"`
}

// Lifetime activity counters for one zone.
type ZoneStats struct {
	ZoneID           string    `json:"zoneID"`
	TotalEntries     int64     `json:"totalEntries"`
	TotalExits       int64     `json:"totalExits"`
	PeakOccupancy    int       `json:"peakOccupancy"`
	CurrentOccupancy int       `json:"currentOccupancy"`
	AvgConfidence    float32   `json:"avgConfidence"`
	LastActivity     time.Time `json:"lastActivity"`
}

// One point of the detection trend, oldest first.
type TrendPoint struct {
	Time  time.Time `json:"time"`
	Count int       `json:"count"`
}

// Movement summary of one track, over its windowed positions.
type TrackStats struct {
	TrackID       int64   `json:"trackID"`
	Positions     int     `json:"positions"`
	TotalDistance float32 `json:"totalDistance"`
	AvgStep       float32 `json:"avgStep"`
	Duration      float64 `json:"durationSeconds"`
}

type timeAndPoint struct {
	time  time.Time
	point geom.Point
}

type trackPath struct {
	positions ringbuffer.RingP[timeAndPoint]
	lastSeen  time.Time
}

// Engine aggregates statistics from all camera pipelines. All methods
// are safe for concurrent use.
type Engine struct {
	log  logs.Log
	lock sync.Mutex

	totalFrames int64
	frames      ringbuffer.RingP[FrameSample]
	zones       map[string]*ZoneStats
	tracks      map[int64]*trackPath

	timeNow func() time.Time
}

// NewEngine creates an analytics engine whose sliding window holds
// windowSize frames (rounded up to a power of 2; 0 for the default).
func NewEngine(logger logs.Log, windowSize int) *Engine {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	windowSize = nextPowerOf2(windowSize)
	if windowSize < 2 {
		windowSize = 2
	}
	return &Engine{
		log:     logger,
		frames:  ringbuffer.NewRingP[FrameSample](windowSize),
		zones:   map[string]*ZoneStats{},
		tracks:  map[int64]*trackPath{},
		timeNow: time.Now,
	}
}

// RecordFrame adds one analyzed frame to the window.
func (e *Engine) RecordFrame(at time.Time, detectionCount, trackCount int, confidences []float32) {
	avg := float32(0)
	if len(confidences) != 0 {
		sum := float32(0)
		for _, c := range confidences {
			sum += c
		}
		avg = sum / float32(len(confidences))
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.frames.Add(FrameSample{
		Time:           at,
		DetectionCount: detectionCount,
		TrackCount:     trackCount,
		AvgConfidence:  avg,
	})
	e.totalFrames++
}

// RecordZoneOccupancy records how many objects one frame saw inside a
// zone. Zero is meaningful: it clears CurrentOccupancy after the zone
// empties out.
func (e *Engine) RecordZoneOccupancy(zoneID string, occupancy int, avgConfidence float32) {
	e.lock.Lock()
	defer e.lock.Unlock()
	z := e.zone(zoneID)
	z.CurrentOccupancy = occupancy
	if occupancy > z.PeakOccupancy {
		z.PeakOccupancy = occupancy
	}
	if occupancy > 0 {
		z.AvgConfidence = avgConfidence
		z.LastActivity = e.timeNow()
	}
}

// RecordZoneEntry counts one object entering the zone.
func (e *Engine) RecordZoneEntry(zoneID string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	z := e.zone(zoneID)
	z.TotalEntries++
	z.LastActivity = e.timeNow()
}

// RecordZoneExit counts one object leaving the zone.
func (e *Engine) RecordZoneExit(zoneID string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	z := e.zone(zoneID)
	z.TotalExits++
	z.LastActivity = e.timeNow()
}

// RecordTrack adds one position of a tracked object.
func (e *Engine) RecordTrack(trackID int64, at time.Time, centroid geom.Point) {
	e.lock.Lock()
	defer e.lock.Unlock()
	tp := e.tracks[trackID]
	if tp == nil {
		e.pruneIdleTracksNoLock()
		tp = &trackPath{positions: ringbuffer.NewRingP[timeAndPoint](trackPositionWindow)}
		e.tracks[trackID] = tp
	}
	tp.positions.Add(timeAndPoint{time: at, point: centroid})
	tp.lastSeen = e.timeNow()
}

// FrameStatistics summarizes the frames currently in the window.
func (e *Engine) FrameStatistics() FrameSummary {
	e.lock.Lock()
	defer e.lock.Unlock()
	s := FrameSummary{
		TotalFrames:  e.totalFrames,
		WindowFrames: e.frames.Len(),
	}
	if s.WindowFrames == 0 {
		return s
	}
	sumDet, sumTracks, sumConf := float32(0), float32(0), float32(0)
	for i := 0; i < e.frames.Len(); i++ {
		f := e.frames.Peek(i)
		sumDet += float32(f.DetectionCount)
		sumTracks += float32(f.TrackCount)
		sumConf += f.AvgConfidence
		if f.DetectionCount > s.MaxDetections {
			s.MaxDetections = f.DetectionCount
		}
		if f.TrackCount > s.MaxTracks {
			s.MaxTracks = f.TrackCount
		}
	}
	n := float32(s.WindowFrames)
	s.AvgDetections = sumDet / n
	s.AvgTracks = sumTracks / n
	s.AvgConfidence = sumConf / n
	return s
}

// ZoneStatistics returns one zone's counters.
func (e *Engine) ZoneStatistics(zoneID string) (ZoneStats, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	z := e.zones[zoneID]
	if z == nil {
		return ZoneStats{}, false
	}
	return *z, true
}

// AllZoneStatistics returns every zone's counters, sorted by zone id.
func (e *Engine) AllZoneStatistics() []ZoneStats {
	e.lock.Lock()
	defer e.lock.Unlock()
	all := make([]ZoneStats, 0, len(e.zones))
	for _, z := range e.zones {
		all = append(all, *z)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].ZoneID < all[b].ZoneID })
	return all
}

// DetectionTrend returns the per-frame detection counts within the
// given trailing window, oldest first.
func (e *Engine) DetectionTrend(window time.Duration) []TrendPoint {
	cutoff := e.timeNow().Add(-window)
	e.lock.Lock()
	defer e.lock.Unlock()
	trend := []TrendPoint{}
	for i := 0; i < e.frames.Len(); i++ {
		f := e.frames.Peek(i)
		if f.Time.Before(cutoff) {
			continue
		}
		trend = append(trend, TrendPoint{Time: f.Time, Count: f.DetectionCount})
	}
	return trend
}

// TrackStatistics summarizes one track's movement.
func (e *Engine) TrackStatistics(trackID int64) (TrackStats, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	tp := e.tracks[trackID]
	if tp == nil {
		return TrackStats{}, false
	}
	return e.trackStatsNoLock(trackID, tp), true
}

// AllTrackStatistics returns movement summaries of the tracks in the
// window, sorted by track id.
func (e *Engine) AllTrackStatistics() []TrackStats {
	e.lock.Lock()
	defer e.lock.Unlock()
	all := make([]TrackStats, 0, len(e.tracks))
	for id, tp := range e.tracks {
		all = append(all, e.trackStatsNoLock(id, tp))
	}
	sort.Slice(all, func(a, b int) bool { return all[a].TrackID < all[b].TrackID })
	return all
}

// Reset discards all statistics.
func (e *Engine) Reset() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.frames = ringbuffer.NewRingP[FrameSample](e.frames.Capacity() + 1)
	e.zones = map[string]*ZoneStats{}
	e.tracks = map[int64]*trackPath{}
	e.totalFrames = 0
	e.log.Infof("Analytics reset")
}

func (e *Engine) zone(zoneID string) *ZoneStats {
	z := e.zones[zoneID]
	if z == nil {
		z = &ZoneStats{ZoneID: zoneID}
		e.zones[zoneID] = z
	}
	return z
}

func (e *Engine) trackStatsNoLock(trackID int64, tp *trackPath) TrackStats {
	s := TrackStats{
		TrackID:   trackID,
		Positions: tp.positions.Len(),
	}
	if s.Positions == 0 {
		return s
	}
	for i := 1; i < tp.positions.Len(); i++ {
		s.TotalDistance += tp.positions.Peek(i - 1).point.Distance(tp.positions.Peek(i).point)
	}
	if s.Positions > 1 {
		s.AvgStep = s.TotalDistance / float32(s.Positions-1)
	}
	s.Duration = tp.positions.Peek(tp.positions.Len() - 1).time.Sub(tp.positions.Peek(0).time).Seconds()
	return s
}

// Dead tracks never get another RecordTrack call, so we sweep them out
// whenever a new track shows up.
func (e *Engine) pruneIdleTracksNoLock() {
	cutoff := e.timeNow().Add(-maxIdleTrackAge)
	for id, tp := range e.tracks {
		if tp.lastSeen.Before(cutoff) {
			delete(e.tracks, id)
		}
	}
}

func nextPowerOf2(n int) int {
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
