package livecameras

import (
	"errors"
	"testing"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/server/camera"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type deadDevice struct{}

func (d *deadDevice) Open(width, height int) error {
	return errors.New("device is gone")
}

func (d *deadDevice) ReadFrame() (detect.Image, error) {
	return detect.Image{}, errors.New("not open")
}

func (d *deadDevice) Close() {}

func TestAddRemove(t *testing.T) {
	lc := NewLiveCameras(logs.NewTestingLog(t))

	require.NoError(t, lc.AddCamera("front", &camera.SyntheticDevice{}, camera.Options{FPS: 100}))
	require.NoError(t, lc.AddCamera("back", &camera.SyntheticDevice{}, camera.Options{FPS: 100}))
	require.Equal(t, []string{"back", "front"}, lc.IDs())

	err := lc.AddCamera("front", &camera.SyntheticDevice{}, camera.Options{})
	require.ErrorIs(t, err, ErrDuplicateCamera)
	require.Equal(t, 2, lc.Count())

	require.True(t, lc.RemoveCamera("front"))
	require.False(t, lc.RemoveCamera("front"))
	require.Equal(t, []string{"back"}, lc.IDs())

	lc.StopAll()
	require.Equal(t, 0, lc.Count())
}

func TestAddCameraDeviceUnavailable(t *testing.T) {
	lc := NewLiveCameras(logs.NewTestingLog(t))
	err := lc.AddCamera("front", &deadDevice{}, camera.Options{})
	require.ErrorIs(t, err, camera.ErrDeviceUnavailable)
	require.Equal(t, 0, lc.Count())
}

func TestLatestFrameCaching(t *testing.T) {
	lc := NewLiveCameras(logs.NewTestingLog(t))
	lc.frameWait = 50 * time.Millisecond

	require.Nil(t, lc.LatestFrame("nope"))

	require.NoError(t, lc.AddCamera("front", &camera.SyntheticDevice{}, camera.Options{Width: 8, Height: 8, FPS: 200}))
	defer lc.StopAll()

	var frame *camera.Frame
	for i := 0; i < 50 && frame == nil; i++ {
		frame = lc.LatestFrame("front")
	}
	require.NotNil(t, frame)
	require.Equal(t, "front", frame.CameraID)

	// Once a frame has been seen, LatestFrame never regresses to nil,
	// even if no new frame is available within the wait window.
	cached := lc.LatestFrame("front")
	require.NotNil(t, cached)
}

func TestInfo(t *testing.T) {
	lc := NewLiveCameras(logs.NewTestingLog(t))
	require.NoError(t, lc.AddCamera("front", &camera.SyntheticDevice{}, camera.Options{Width: 32, Height: 24, FPS: 100}))
	defer lc.StopAll()

	info := lc.Info("front")
	require.NotNil(t, info)
	require.Equal(t, "front", info.ID)
	require.Equal(t, 32, info.Width)
	require.Equal(t, 24, info.Height)
	require.Equal(t, 100, info.FPS)
	require.Equal(t, "running", info.State)

	require.Nil(t, lc.Info("nope"))
	require.Len(t, lc.AllInfo(), 1)
}
