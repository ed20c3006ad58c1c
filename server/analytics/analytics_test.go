package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, windowSize int) (*Engine, *fakeClock) {
	e := NewEngine(logs.NewTestingLog(t), windowSize)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e.timeNow = clock.Now
	return e, clock
}

func TestFrameStatistics(t *testing.T) {
	e, clock := newTestEngine(t, 0)

	e.RecordFrame(clock.Now(), 2, 2, []float32{0.8, 0.6})
	e.RecordFrame(clock.Now(), 4, 3, []float32{0.9, 0.9, 0.9, 0.9})
	e.RecordFrame(clock.Now(), 0, 1, nil)

	s := e.FrameStatistics()
	require.Equal(t, int64(3), s.TotalFrames)
	require.Equal(t, 3, s.WindowFrames)
	require.Equal(t, 4, s.MaxDetections)
	require.Equal(t, 3, s.MaxTracks)
	require.InDelta(t, 2.0, s.AvgDetections, 1e-5)
	require.InDelta(t, 2.0, s.AvgTracks, 1e-5)
	// (0.7 + 0.9 + 0) / 3
	require.InDelta(t, 0.53333, s.AvgConfidence, 1e-4)
}

func TestWindowEviction(t *testing.T) {
	// Window of 4 holds 3 samples
	e, clock := newTestEngine(t, 4)
	for i := 0; i < 10; i++ {
		e.RecordFrame(clock.Now(), i, 0, nil)
	}
	s := e.FrameStatistics()
	require.Equal(t, int64(10), s.TotalFrames)
	require.Equal(t, 3, s.WindowFrames)
	// Only the last 3 frames survive
	require.InDelta(t, 8.0, s.AvgDetections, 1e-5)
}

func TestZoneActivity(t *testing.T) {
	e, _ := newTestEngine(t, 0)

	e.RecordZoneEntry("z1")
	e.RecordZoneOccupancy("z1", 2, 0.75)
	e.RecordZoneOccupancy("z1", 3, 0.8)
	e.RecordZoneEntry("z1")
	e.RecordZoneExit("z1")
	e.RecordZoneOccupancy("z1", 1, 0.7)

	z, ok := e.ZoneStatistics("z1")
	require.True(t, ok)
	require.Equal(t, int64(2), z.TotalEntries)
	require.Equal(t, int64(1), z.TotalExits)
	require.Equal(t, 3, z.PeakOccupancy)
	require.Equal(t, 1, z.CurrentOccupancy)
	require.InDelta(t, 0.7, z.AvgConfidence, 1e-5)
	require.False(t, z.LastActivity.IsZero())

	// The zone empties: current drops, peak stays
	e.RecordZoneOccupancy("z1", 0, 0)
	z, _ = e.ZoneStatistics("z1")
	require.Equal(t, 0, z.CurrentOccupancy)
	require.Equal(t, 3, z.PeakOccupancy)

	_, ok = e.ZoneStatistics("nosuch")
	require.False(t, ok)

	e.RecordZoneEntry("a0")
	all := e.AllZoneStatistics()
	require.Len(t, all, 2)
	require.Equal(t, "a0", all[0].ZoneID)
	require.Equal(t, "z1", all[1].ZoneID)
}

func TestDetectionTrend(t *testing.T) {
	e, clock := newTestEngine(t, 0)

	e.RecordFrame(clock.Now(), 1, 1, nil)
	clock.Advance(5 * time.Minute)
	e.RecordFrame(clock.Now(), 2, 1, nil)
	clock.Advance(5 * time.Minute)
	e.RecordFrame(clock.Now(), 3, 1, nil)

	trend := e.DetectionTrend(time.Hour)
	require.Len(t, trend, 3)
	require.Equal(t, 1, trend[0].Count)
	require.Equal(t, 3, trend[2].Count)

	// Only the last two frames fall inside a 6 minute window
	trend = e.DetectionTrend(6 * time.Minute)
	require.Len(t, trend, 2)
	require.Equal(t, 2, trend[0].Count)
}

func TestTrackStatistics(t *testing.T) {
	e, clock := newTestEngine(t, 0)

	start := clock.Now()
	e.RecordTrack(7, start, geom.Point{X: 0, Y: 0})
	e.RecordTrack(7, start.Add(time.Second), geom.Point{X: 3, Y: 4})
	e.RecordTrack(7, start.Add(2*time.Second), geom.Point{X: 3, Y: 14})

	s, ok := e.TrackStatistics(7)
	require.True(t, ok)
	require.Equal(t, 3, s.Positions)
	// 5 + 10
	require.InDelta(t, 15.0, s.TotalDistance, 1e-4)
	require.InDelta(t, 7.5, s.AvgStep, 1e-4)
	require.InDelta(t, 2.0, s.Duration, 1e-5)

	_, ok = e.TrackStatistics(99)
	require.False(t, ok)

	e.RecordTrack(3, start, geom.Point{X: 1, Y: 1})
	all := e.AllTrackStatistics()
	require.Len(t, all, 2)
	require.Equal(t, int64(3), all[0].TrackID)
	require.Equal(t, int64(7), all[1].TrackID)
}

func TestIdleTrackPruning(t *testing.T) {
	e, clock := newTestEngine(t, 0)

	e.RecordTrack(1, clock.Now(), geom.Point{X: 0, Y: 0})
	clock.Advance(2 * time.Minute)
	// Registering a new track sweeps out the stale one
	e.RecordTrack(2, clock.Now(), geom.Point{X: 0, Y: 0})

	_, ok := e.TrackStatistics(1)
	require.False(t, ok)
	_, ok = e.TrackStatistics(2)
	require.True(t, ok)
}

func TestReset(t *testing.T) {
	e, clock := newTestEngine(t, 0)
	e.RecordFrame(clock.Now(), 1, 1, []float32{0.9})
	e.RecordZoneEntry("z1")
	e.RecordTrack(1, clock.Now(), geom.Point{X: 0, Y: 0})

	e.Reset()
	require.Equal(t, int64(0), e.FrameStatistics().TotalFrames)
	require.Empty(t, e.AllZoneStatistics())
	require.Empty(t, e.AllTrackStatistics())
}
