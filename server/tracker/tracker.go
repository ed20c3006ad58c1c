package tracker

import (
	"math"
	"sort"
	"time"

	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
)

const (
	DefaultMaxDisappeared      = 30
	DefaultMaxDistance         = 50.0
	DefaultStaleAfter          = 30
	DefaultPositionHistorySize = 64
)

// A time and position where we saw an entity
type TimeAndPosition struct {
	Time      time.Time
	Detection detect.Detection
}

// Entity is one tracked identity.
// Exclusively owned by its Tracker: nothing else mutates it, and a
// pointer handed out by Update is only valid to read until the next
// Update call on the same tracker.
type Entity struct {
	TrackID         int64      `json:"trackID"`
	Class           string     `json:"class"`
	Centroid        geom.Point `json:"centroid"`
	Box             geom.Rect  `json:"box"`
	Confidence      float32    `json:"confidence"`
	FramesSeen      int        `json:"framesSeen"`
	FramesSinceSeen int        `json:"framesSinceSeen"`
	FirstSeen       time.Time  `json:"firstSeen"`
	LastSeen        time.Time  `json:"lastSeen"`

	staleAfter int
	history    ringbuffer.RingP[TimeAndPosition]
}

// IsStale is true when the entity hasn't been matched recently enough
// for consumers that want only confidently-active tracks.
func (e *Entity) IsStale() bool {
	return e.FramesSinceSeen > e.staleAfter
}

// History returns the entity's recorded positions, oldest first.
func (e *Entity) History() []TimeAndPosition {
	h := make([]TimeAndPosition, 0, e.history.Len())
	for i := 0; i < e.history.Len(); i++ {
		h = append(h, e.history.Peek(i))
	}
	return h
}

// DistanceFromOrigin is how far the entity has moved since it was first
// seen. Useful for telling a genuine moving object from detector noise.
func (e *Entity) DistanceFromOrigin() float32 {
	return e.history.Peek(0).Detection.Center().Distance(e.Centroid)
}

type Options struct {
	MaxDisappeared      int     // Remove an entity after this many consecutive unmatched frames
	MaxDistance         float32 // Distance gate for centroid matching
	StaleAfter          int     // IsStale threshold, in unmatched frames
	PositionHistorySize int     // Ring buffer of last N positions per entity
}

func DefaultOptions() Options {
	return Options{
		MaxDisappeared:      DefaultMaxDisappeared,
		MaxDistance:         DefaultMaxDistance,
		StaleAfter:          DefaultStaleAfter,
		PositionHistorySize: DefaultPositionHistorySize,
	}
}

// Tracker assigns stable integer identities to detections across frames
// using greedy nearest-centroid matching.
// Not safe for concurrent use: each camera pipeline owns its own
// Tracker, or callers serialize access externally.
type Tracker struct {
	log  logs.Log
	opts Options

	nextID   int64
	entities map[int64]*Entity
	order    []int64 // Registration order of live track ids
}

func NewTracker(logger logs.Log, opts Options) *Tracker {
	def := DefaultOptions()
	if opts.MaxDisappeared <= 0 {
		opts.MaxDisappeared = def.MaxDisappeared
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = def.MaxDistance
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = def.StaleAfter
	}
	if opts.PositionHistorySize <= 0 {
		opts.PositionHistorySize = def.PositionHistorySize
	}
	// The ring buffer needs a power of 2, minimum 2
	opts.PositionHistorySize = nextPowerOf2(opts.PositionHistorySize)
	if opts.PositionHistorySize < 2 {
		opts.PositionHistorySize = 2
	}
	return &Tracker{
		log:      logger,
		opts:     opts,
		entities: map[int64]*Entity{},
	}
}

// Update feeds one frame's detections into the tracker and returns the
// surviving entity set.
//
// Matching is a greedy nearest-neighbor heuristic, not a globally
// optimal assignment: existing entities are processed in order of their
// best candidate distance (ascending, ties keeping registration order),
// and each takes its single nearest detection. If that detection is
// already claimed, the entity goes unmatched for this frame; it is not
// re-assigned to its second-nearest.
func (t *Tracker) Update(detections []detect.Detection) map[int64]*Entity {
	if len(detections) == 0 {
		for _, id := range append([]int64{}, t.order...) {
			t.age(id)
		}
		return t.entities
	}

	if len(t.entities) == 0 {
		for _, det := range detections {
			t.register(det)
		}
		return t.entities
	}

	ids := append([]int64{}, t.order...)
	nRows := len(ids)
	nCols := len(detections)

	// Distance matrix: existing entity centroids x detection centroids
	dist := make([][]float32, nRows)
	for i, id := range ids {
		dist[i] = make([]float32, nCols)
		for j := range detections {
			dist[i][j] = t.entities[id].Centroid.Distance(detections[j].Center())
		}
	}

	// Each row's candidate is its nearest column. Ties take the lowest
	// column index.
	candidate := make([]int, nRows)
	bestDist := make([]float32, nRows)
	for i := range dist {
		best := 0
		for j := 1; j < nCols; j++ {
			if dist[i][j] < dist[i][best] {
				best = j
			}
		}
		candidate[i] = best
		bestDist[i] = dist[i][best]
	}

	rows := make([]int, nRows)
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return bestDist[rows[a]] < bestDist[rows[b]]
	})

	rowMatched := make([]bool, nRows)
	colMatched := make([]bool, nCols)
	for _, i := range rows {
		j := candidate[i]
		if dist[i][j] > t.opts.MaxDistance {
			continue
		}
		if rowMatched[i] || colMatched[j] {
			continue
		}
		t.refresh(ids[i], detections[j])
		rowMatched[i] = true
		colMatched[j] = true
	}

	for i, id := range ids {
		if !rowMatched[i] {
			t.age(id)
		}
	}
	for j, det := range detections {
		if !colMatched[j] {
			t.register(det)
		}
	}

	return t.entities
}

// Entities returns the current entity set.
func (t *Tracker) Entities() map[int64]*Entity {
	return t.entities
}

// All returns the current entities in registration order.
func (t *Tracker) All() []*Entity {
	all := make([]*Entity, 0, len(t.order))
	for _, id := range t.order {
		all = append(all, t.entities[id])
	}
	return all
}

// ActiveEntities returns only the non-stale entities.
func (t *Tracker) ActiveEntities() []*Entity {
	active := []*Entity{}
	for _, id := range t.order {
		if e := t.entities[id]; !e.IsStale() {
			active = append(active, e)
		}
	}
	return active
}

func (t *Tracker) Count() int {
	return len(t.entities)
}

// Reset clears all state and restarts id allocation from zero.
func (t *Tracker) Reset() {
	t.entities = map[int64]*Entity{}
	t.order = nil
	t.nextID = 0
	t.log.Infof("Tracker reset")
}

func (t *Tracker) register(det detect.Detection) {
	now := time.Now()
	e := &Entity{
		TrackID:    t.nextID,
		Class:      det.Class,
		Centroid:   det.Center(),
		Box:        det.Box,
		Confidence: det.Confidence,
		FramesSeen: 1,
		FirstSeen:  now,
		LastSeen:   now,
		staleAfter: t.opts.StaleAfter,
		history:    ringbuffer.NewRingP[TimeAndPosition](t.opts.PositionHistorySize),
	}
	e.history.Add(TimeAndPosition{Time: now, Detection: det})
	t.entities[e.TrackID] = e
	t.order = append(t.order, e.TrackID)
	t.nextID++
}

func (t *Tracker) refresh(id int64, det detect.Detection) {
	e := t.entities[id]
	e.Centroid = det.Center()
	e.Box = det.Box
	e.Confidence = det.Confidence
	e.FramesSeen++
	e.FramesSinceSeen = 0
	e.LastSeen = time.Now()
	e.history.Add(TimeAndPosition{Time: e.LastSeen, Detection: det})
}

// age increments the disappearance counter, removing the entity once it
// exceeds MaxDisappeared. Track ids are never reused after removal.
func (t *Tracker) age(id int64) {
	e := t.entities[id]
	e.FramesSinceSeen++
	if e.FramesSinceSeen > t.opts.MaxDisappeared {
		delete(t.entities, id)
		for i, oid := range t.order {
			if oid == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

func nextPowerOf2(n int) int {
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
