// Package monitor runs the analysis pipeline on the camera streams:
// frame -> detector -> tracker -> zone containment -> alert gate -> sinks.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/areawatch/areawatch/server/alertdb"
	"github.com/areawatch/areawatch/server/alerts"
	"github.com/areawatch/areawatch/server/analytics"
	"github.com/areawatch/areawatch/server/livecameras"
	"github.com/areawatch/areawatch/server/tracker"
	"github.com/areawatch/areawatch/server/zones"
	"github.com/cyclopcam/logs"
)

type Options struct {
	// How long each pipeline iteration waits for a new frame
	FrameTimeout time.Duration

	// Minimum time between screenshots of the same camera
	ScreenshotCooldown time.Duration

	// Save a JPEG of the triggering frame when an alert fires
	EnableScreenshots bool

	// Severity assigned to zone entry alerts
	EntryAlertLevel alerts.Level

	// Severity assigned to zone exit alerts
	ExitAlertLevel alerts.Level

	Tracker tracker.Options
}

func DefaultOptions() Options {
	return Options{
		FrameTimeout:       500 * time.Millisecond,
		ScreenshotCooldown: 30 * time.Second,
		EnableScreenshots:  true,
		EntryAlertLevel:    alerts.LevelWarning,
		ExitAlertLevel:     alerts.LevelInfo,
		Tracker:            tracker.DefaultOptions(),
	}
}

// Monitor owns one analysis pipeline per camera. Each pipeline runs on
// its own goroutine and has its own tracker, so camera streams never
// share identity state. The detector, zone index, alert gate and alert
// DB are shared; the detector is serialized here, the rest serialize
// internally.
type Monitor struct {
	Log logs.Log

	live      *livecameras.LiveCameras
	detector  detect.Detector
	zones     *zones.Index
	gate      *alerts.Gate
	db        *alertdb.AlertDB  // nil disables persistence
	analytics *analytics.Engine // nil disables statistics

	opts Options

	detectorLock sync.Mutex

	pipelinesLock sync.Mutex
	pipelines     map[string]*pipeline

	watchersLock       sync.RWMutex
	watchers           map[string][]chan *AnalysisState
	watchersAllCameras []chan *AnalysisState

	framesAnalyzed   atomic.Int64
	detectorFailures atomic.Int64
	alertsFired      atomic.Int64
	startedAt        time.Time
}

// One camera's analysis loop state. Owned by the goroutine running it,
// except mustStop and entityCount.
type pipeline struct {
	cameraID string
	tracker  *tracker.Tracker

	// Zone membership per track, from the previous frame. Used to
	// detect entry and exit transitions.
	zonesByTrack map[int64]map[string]bool

	// Entity count after the latest Update. The tracker itself may only
	// be touched by the pipeline goroutine, so this is what snapshot
	// queries from other goroutines read.
	entityCount atomic.Int64

	mustStop    atomic.Bool
	loopStopped chan bool

	lastScreenshotAt time.Time
	lastDetectErrAt  time.Time
}

// A tracked object as published to watchers.
// SYNC-ANALYSIS-STATE
type TrackedObject struct {
	ID         int64      `json:"id"`
	Class      string     `json:"class"`
	Box        geom.Rect  `json:"box"`
	Centroid   geom.Point `json:"centroid"`
	Confidence float32    `json:"confidence"`
	Zones      []string   `json:"zones"`
	Genuine    bool       `json:"genuine"` // False once the track has gone stale
}

// Result of analyzing one frame of one camera.
// SYNC-ANALYSIS-STATE
type AnalysisState struct {
	CameraID  string          `json:"cameraID"`
	FrameSeq  int64           `json:"frameSeq"`
	FrameTime time.Time       `json:"frameTime"`
	Objects   []TrackedObject `json:"objects"`
}

// Statistics since the monitor was created.
type Statistics struct {
	StartedAt        time.Time `json:"startedAt"`
	Uptime           string    `json:"uptime"`
	Pipelines        int       `json:"pipelines"`
	FramesAnalyzed   int64     `json:"framesAnalyzed"`
	DetectorFailures int64     `json:"detectorFailures"`
	AlertsFired      int64     `json:"alertsFired"`
}

// NewMonitor creates a monitor. alertDB may be nil, in which case no
// alerts, detections or screenshots are persisted. analyticsEngine may
// be nil, in which case no statistics are gathered.
func NewMonitor(logger logs.Log, live *livecameras.LiveCameras, detector detect.Detector, zoneIndex *zones.Index, gate *alerts.Gate, alertDB *alertdb.AlertDB, analyticsEngine *analytics.Engine, opts Options) *Monitor {
	def := DefaultOptions()
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = def.FrameTimeout
	}
	if opts.ScreenshotCooldown <= 0 {
		opts.ScreenshotCooldown = def.ScreenshotCooldown
	}
	if opts.EntryAlertLevel == "" {
		opts.EntryAlertLevel = def.EntryAlertLevel
	}
	if opts.ExitAlertLevel == "" {
		opts.ExitAlertLevel = def.ExitAlertLevel
	}
	return &Monitor{
		Log:       logger,
		live:      live,
		detector:  detector,
		zones:     zoneIndex,
		gate:      gate,
		db:        alertDB,
		analytics: analyticsEngine,
		opts:      opts,
		pipelines: map[string]*pipeline{},
		watchers:  map[string][]chan *AnalysisState{},
		startedAt: time.Now(),
	}
}

// StartCamera begins analyzing the given camera. Idempotent.
func (m *Monitor) StartCamera(cameraID string) {
	m.pipelinesLock.Lock()
	defer m.pipelinesLock.Unlock()
	if _, ok := m.pipelines[cameraID]; ok {
		return
	}
	p := &pipeline{
		cameraID:     cameraID,
		tracker:      tracker.NewTracker(m.Log, m.opts.Tracker),
		zonesByTrack: map[int64]map[string]bool{},
		loopStopped:  make(chan bool),
	}
	m.pipelines[cameraID] = p
	m.Log.Infof("Monitor starting pipeline for camera %v", cameraID)
	go m.runPipeline(p)
}

// StopCamera stops analyzing the given camera and waits for its loop
// to exit. Returns false if the camera was not being analyzed.
func (m *Monitor) StopCamera(cameraID string) bool {
	m.pipelinesLock.Lock()
	p, ok := m.pipelines[cameraID]
	if ok {
		delete(m.pipelines, cameraID)
	}
	m.pipelinesLock.Unlock()
	if !ok {
		return false
	}
	p.mustStop.Store(true)
	<-p.loopStopped
	m.Log.Infof("Monitor stopped pipeline for camera %v", cameraID)
	return true
}

// StartAll starts a pipeline for every registered camera.
func (m *Monitor) StartAll() {
	for _, id := range m.live.IDs() {
		m.StartCamera(id)
	}
}

// Close stops all pipelines and the detector.
func (m *Monitor) Close() {
	m.Log.Infof("Monitor shutting down")
	m.pipelinesLock.Lock()
	running := make([]*pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		running = append(running, p)
	}
	m.pipelines = map[string]*pipeline{}
	m.pipelinesLock.Unlock()
	for _, p := range running {
		p.mustStop.Store(true)
	}
	for _, p := range running {
		<-p.loopStopped
	}
	m.detector.Close()
	m.Log.Infof("Monitor is closed")
}

// CameraIDs returns the cameras currently being analyzed, unordered.
func (m *Monitor) CameraIDs() []string {
	m.pipelinesLock.Lock()
	defer m.pipelinesLock.Unlock()
	ids := make([]string, 0, len(m.pipelines))
	for id := range m.pipelines {
		ids = append(ids, id)
	}
	return ids
}

func (m *Monitor) GetStatistics() Statistics {
	m.pipelinesLock.Lock()
	nPipelines := len(m.pipelines)
	m.pipelinesLock.Unlock()
	return Statistics{
		StartedAt:        m.startedAt,
		Uptime:           time.Since(m.startedAt).Round(time.Second).String(),
		Pipelines:        nPipelines,
		FramesAnalyzed:   m.framesAnalyzed.Load(),
		DetectorFailures: m.detectorFailures.Load(),
		AlertsFired:      m.alertsFired.Load(),
	}
}

// Loop runs until StopCamera or Close.
func (m *Monitor) runPipeline(p *pipeline) {
	for !p.mustStop.Load() {
		cam := m.live.CameraFromID(p.cameraID)
		if cam == nil {
			// Camera was removed from the registry. Keep the pipeline
			// alive in case it comes back.
			time.Sleep(m.opts.FrameTimeout)
			continue
		}
		frame := cam.ReadLatest(m.opts.FrameTimeout)
		if frame == nil {
			continue
		}
		m.analyzeFrame(p, frame)
	}
	close(p.loopStopped)
}
