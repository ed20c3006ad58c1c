package camera

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/cyclopcam/logs"
)

// Frame is one captured image, stamped by the capture loop.
// A Frame is immutable once published: consumers must not write into
// Image.Pixels, because several pipeline stages may hold the same buffer.
type Frame struct {
	CameraID   string       `json:"cameraID"`
	Image      detect.Image `json:"-"`
	CapturedAt time.Time    `json:"capturedAt"`
	Seq        int64        `json:"seq"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
}

// State of the capture loop.
// Transitions are guarded by Camera.stateLock, so that Stop() can be
// called from any goroutine, concurrently with the loop itself.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "stopped"
}

type Options struct {
	Width     int // Requested frame width (default 640)
	Height    int // Requested frame height (default 480)
	FPS       int // Target capture rate (default 30)
	QueueSize int // Capacity of the frame queue (default 2)
}

func DefaultOptions() Options {
	return Options{
		Width:     640,
		Height:    480,
		FPS:       30,
		QueueSize: 2,
	}
}

// Camera owns one capture device and a dedicated goroutine that reads
// frames from it at the target rate. Captured frames go into a bounded
// queue. When the queue is full, the NEW frame is dropped, so under
// sustained backpressure the consumer sees progressively staler frames
// instead of jumping ahead to the most recent capture. Readers that
// want freshest-wins must drain the queue themselves.
type Camera struct {
	ID  string
	log logs.Log

	device Device
	opts   Options
	queue  chan *Frame

	stateLock   sync.Mutex
	state       State
	stop        chan bool
	loopStopped chan bool

	// Health counters. The capture loop never terminates on a bad read;
	// repeated failures show up here instead.
	frameCount  atomic.Int64 // Frames successfully captured
	failedReads atomic.Int64 // Transient capture failures
	dropped     atomic.Int64 // Frames dropped because the queue was full
}

func NewCamera(logger logs.Log, id string, device Device, opts Options) *Camera {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	return &Camera{
		ID:     id,
		log:    logger,
		device: device,
		opts:   opts,
		queue:  make(chan *Frame, opts.QueueSize),
	}
}

// Start opens the device and launches the capture loop.
// Returns an error wrapping ErrDeviceUnavailable if the device cannot
// be opened. Calling Start on a camera that is already running is a no-op.
func (c *Camera) Start() error {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if c.state != StateStopped {
		return nil
	}
	if err := c.device.Open(c.opts.Width, c.opts.Height); err != nil {
		return fmt.Errorf("camera %v: %w: %v", c.ID, ErrDeviceUnavailable, err)
	}
	c.stop = make(chan bool)
	c.loopStopped = make(chan bool)
	c.state = StateRunning
	go c.run()
	c.log.Infof("Camera %v started (%vx%v @ %v fps)", c.ID, c.opts.Width, c.opts.Height, c.opts.FPS)
	return nil
}

// Stop signals the capture loop to exit, waits for it, and releases the
// device. Safe to call from any goroutine, repeatedly; only the caller
// that wins the Running -> Stopping transition releases the device, so
// it is closed exactly once.
func (c *Camera) Stop() {
	c.stateLock.Lock()
	if c.state != StateRunning {
		c.stateLock.Unlock()
		return
	}
	c.state = StateStopping
	c.stateLock.Unlock()

	close(c.stop)
	<-c.loopStopped
	c.device.Close()

	c.stateLock.Lock()
	c.state = StateStopped
	c.stateLock.Unlock()
	c.log.Infof("Camera %v stopped", c.ID)
}

// ReadLatest blocks up to timeout for the next queued frame.
// Returns nil if no frame arrives in time. A timeout of zero or less
// polls without blocking.
func (c *Camera) ReadLatest(timeout time.Duration) *Frame {
	if timeout <= 0 {
		select {
		case f := <-c.queue:
			return f
		default:
			return nil
		}
	}
	select {
	case f := <-c.queue:
		return f
	case <-time.After(timeout):
		return nil
	}
}

func (c *Camera) State() State {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.state
}

func (c *Camera) FrameCount() int64 {
	return c.frameCount.Load()
}

func (c *Camera) FailedReads() int64 {
	return c.failedReads.Load()
}

func (c *Camera) DroppedFrames() int64 {
	return c.dropped.Load()
}

func (c *Camera) Options() Options {
	return c.opts
}

func (c *Camera) run() {
	defer close(c.loopStopped)

	delay := time.Second / time.Duration(c.opts.FPS)
	lastErrAt := time.Time{}
	// Seed from the lifetime counter so that sequence numbers keep
	// increasing across a stop/restart of the same camera.
	seq := c.frameCount.Load()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		img, err := c.device.ReadFrame()
		if err != nil {
			c.failedReads.Add(1)
			if time.Now().Sub(lastErrAt) > 15*time.Second {
				c.log.Warnf("Camera %v failed to read frame: %v", c.ID, err)
				lastErrAt = time.Now()
			}
		} else {
			c.publish(&Frame{
				CameraID:   c.ID,
				Image:      img,
				CapturedAt: time.Now(),
				Seq:        seq,
				Width:      img.Width,
				Height:     img.Height,
			})
			seq++
			c.frameCount.Add(1)
		}

		// Rate control. This caps throughput at the target FPS, it does
		// not promise hard real-time spacing.
		select {
		case <-c.stop:
			return
		case <-time.After(delay):
		}
	}
}

// publish enqueues without blocking. The capture loop must never stall
// on a slow consumer, so when the queue is full the incoming frame is
// dropped and the queue keeps its older frames.
func (c *Camera) publish(f *Frame) {
	select {
	case c.queue <- f:
	default:
		c.dropped.Add(1)
	}
}
