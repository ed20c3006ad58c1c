package camera

import (
	"errors"
	"testing"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type brokenDevice struct{}

func (d *brokenDevice) Open(width, height int) error {
	return errors.New("no such device")
}

func (d *brokenDevice) ReadFrame() (detect.Image, error) {
	return detect.Image{}, errors.New("not open")
}

func (d *brokenDevice) Close() {}

func testFrame(seq int64) *Frame {
	return &Frame{
		CameraID:   "cam1",
		CapturedAt: time.Now(),
		Seq:        seq,
		Width:      8,
		Height:     8,
	}
}

func TestQueueDropsNewFrameOnOverflow(t *testing.T) {
	cam := NewCamera(logs.NewTestingLog(t), "cam1", &SyntheticDevice{}, Options{QueueSize: 2})

	// Publish 5 frames with nobody consuming. The queue holds the 1st and
	// 2nd captures; the newer frames are the ones that get dropped.
	for seq := int64(0); seq < 5; seq++ {
		cam.publish(testFrame(seq))
	}
	require.Equal(t, int64(3), cam.DroppedFrames())

	f1 := cam.ReadLatest(0)
	require.NotNil(t, f1)
	require.Equal(t, int64(0), f1.Seq)

	f2 := cam.ReadLatest(0)
	require.NotNil(t, f2)
	require.Equal(t, int64(1), f2.Seq)

	require.Nil(t, cam.ReadLatest(0))
}

func TestReadLatestTimeout(t *testing.T) {
	cam := NewCamera(logs.NewTestingLog(t), "cam1", &SyntheticDevice{}, Options{})
	start := time.Now()
	require.Nil(t, cam.ReadLatest(20*time.Millisecond))
	require.GreaterOrEqual(t, time.Now().Sub(start), 20*time.Millisecond)

	cam.publish(testFrame(0))
	f := cam.ReadLatest(time.Second)
	require.NotNil(t, f)
	require.Equal(t, int64(0), f.Seq)
}

func TestStartStopLifecycle(t *testing.T) {
	cam := NewCamera(logs.NewTestingLog(t), "cam1", &SyntheticDevice{Fill: 0x80}, Options{Width: 16, Height: 16, FPS: 200})
	require.Equal(t, StateStopped, cam.State())

	require.NoError(t, cam.Start())
	require.Equal(t, StateRunning, cam.State())

	f := cam.ReadLatest(2 * time.Second)
	require.NotNil(t, f)
	require.Equal(t, "cam1", f.CameraID)
	require.Equal(t, 16, f.Width)
	require.Equal(t, 16, f.Height)
	require.Equal(t, 3, f.Image.NChan)
	require.Equal(t, byte(0x80), f.Image.Pixels[0])

	cam.Stop()
	require.Equal(t, StateStopped, cam.State())
	require.GreaterOrEqual(t, cam.FrameCount(), int64(1))

	// Stop is idempotent
	cam.Stop()
	require.Equal(t, StateStopped, cam.State())
}

func TestSequenceNumbersSurviveRestart(t *testing.T) {
	cam := NewCamera(logs.NewTestingLog(t), "cam1", &SyntheticDevice{}, Options{Width: 8, Height: 8, FPS: 200})

	require.NoError(t, cam.Start())
	require.NotNil(t, cam.ReadLatest(2*time.Second))
	cam.Stop()
	captured := cam.FrameCount()
	require.GreaterOrEqual(t, captured, int64(1))
	// Drain frames queued before the stop
	for cam.ReadLatest(0) != nil {
	}

	// A restarted camera continues numbering where it left off
	require.NoError(t, cam.Start())
	f := cam.ReadLatest(2 * time.Second)
	require.NotNil(t, f)
	require.GreaterOrEqual(t, f.Seq, captured)
	cam.Stop()
}

func TestStartFailsWhenDeviceUnavailable(t *testing.T) {
	cam := NewCamera(logs.NewTestingLog(t), "cam1", &brokenDevice{}, Options{})
	err := cam.Start()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	require.Equal(t, StateStopped, cam.State())
}
