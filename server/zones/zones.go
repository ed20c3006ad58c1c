package zones

import (
	"fmt"
	"sync"

	"github.com/areawatch/areawatch/pkg/geom"
	"github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/logs"
)

type ShapeKind string

const (
	ShapePolygon   ShapeKind = "polygon"
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
)

// ParseShapeKind validates a shape kind string, eg from config or an API.
func ParseShapeKind(kind string) (ShapeKind, error) {
	switch ShapeKind(kind) {
	case ShapePolygon, ShapeRectangle, ShapeCircle:
		return ShapeKind(kind), nil
	}
	return "", fmt.Errorf("Unknown zone shape '%v'", kind)
}

// RGB is the render color of a zone.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Zone is a named 2D region of the camera image.
// Geometry payload by shape:
//   - polygon: the ordered vertex ring
//   - rectangle: two opposite corners, in any order
//   - circle: center, followed by any point on the circumference
//
// Zones are read-only during containment evaluation; all mutation goes
// through the Index.
type Zone struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         ShapeKind    `json:"kind"`
	Points       []geom.Point `json:"points"`
	Enabled      bool         `json:"enabled"`
	AlertOnEntry bool         `json:"alertOnEntry"`
	AlertOnExit  bool         `json:"alertOnExit"`
	Color        RGB          `json:"color"`
}

// NewFullFrameZone returns an enabled polygon zone covering the whole
// frame. Used as the default zone when an operator hasn't drawn any.
func NewFullFrameZone(id, name string, width, height int) *Zone {
	w := float32(width)
	h := float32(height)
	return &Zone{
		ID:           id,
		Name:         name,
		Kind:         ShapePolygon,
		Points:       []geom.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}},
		Enabled:      true,
		AlertOnEntry: true,
		Color:        RGB{R: 255, G: 255},
	}
}

// ContainsPoint reports whether p lies inside the zone's shape.
// Pure function of the geometry and point.
func (z *Zone) ContainsPoint(p geom.Point) bool {
	switch z.Kind {
	case ShapePolygon:
		return z.pointInPolygon(p)
	case ShapeRectangle:
		return z.pointInRectangle(p)
	case ShapeCircle:
		return z.pointInCircle(p)
	}
	return false
}

// Even-odd ray casting over the vertex ring, with the wrap-around edge.
// Note the handling of horizontal edges (p1.Y == p2.Y): they reuse the
// crossing x computed for the previous edge, and on the very first edge
// there is no previous crossing so xinters is still zero. Pinned by
// TestPolygonHorizontalEdge; don't simplify this without updating the
// callers that depend on edge-exact results.
func (z *Zone) pointInPolygon(p geom.Point) bool {
	n := len(z.Points)
	if n == 0 {
		return false
	}
	inside := false
	xinters := float32(0)
	p1 := z.Points[0]
	for i := 1; i <= n; i++ {
		p2 := z.Points[i%n]
		if p.Y > min(p1.Y, p2.Y) && p.Y <= max(p1.Y, p2.Y) && p.X <= max(p1.X, p2.X) {
			if p1.Y != p2.Y {
				xinters = (p.Y-p1.Y)*(p2.X-p1.X)/(p2.Y-p1.Y) + p1.X
			}
			if p1.X == p2.X || p.X <= xinters {
				inside = !inside
			}
		}
		p1 = p2
	}
	return inside
}

// Inclusive bounds, independent of which corner comes first.
func (z *Zone) pointInRectangle(p geom.Point) bool {
	if len(z.Points) < 2 {
		return false
	}
	r := geom.RectFromCorners(z.Points[0].X, z.Points[0].Y, z.Points[1].X, z.Points[1].Y)
	return p.X >= r.X && p.X <= r.X2() && p.Y >= r.Y && p.Y <= r.Y2()
}

func (z *Zone) pointInCircle(p geom.Point) bool {
	if len(z.Points) < 2 {
		return false
	}
	center := z.Points[0]
	radius := center.Distance(z.Points[1])
	return center.Distance(p) <= radius
}

// Bounds returns the axis-aligned bounding box of the shape.
func (z *Zone) Bounds() geom.Rect {
	switch z.Kind {
	case ShapeCircle:
		if len(z.Points) < 2 {
			return geom.Rect{}
		}
		center := z.Points[0]
		radius := center.Distance(z.Points[1])
		return geom.RectFromCorners(center.X-radius, center.Y-radius, center.X+radius, center.Y+radius)
	default:
		if len(z.Points) == 0 {
			return geom.Rect{}
		}
		minX, minY := z.Points[0].X, z.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range z.Points[1:] {
			minX = min(minX, p.X)
			minY = min(minY, p.Y)
			maxX = max(maxX, p.X)
			maxY = max(maxY, p.Y)
		}
		return geom.RectFromCorners(minX, minY, maxX, maxY)
	}
}

// Index owns the set of zones and answers containment queries.
// Reads vastly outnumber writes, so queries take a read lock, and every
// mutation rebuilds a flatbush index over the enabled zones' bounding
// boxes. ContainingZones first narrows by bounding box, then runs the
// exact per-shape test.
type Index struct {
	log logs.Log

	lock    sync.RWMutex
	zones   map[string]*Zone
	order   []string // Insertion order of zone ids, for stable listing
	fb      *flatbush.Flatbush[float32]
	fbZones []*Zone // Zone per flatbush entry, in insertion order
}

func NewIndex(logger logs.Log) *Index {
	return &Index{
		log:   logger,
		zones: map[string]*Zone{},
	}
}

// Add inserts the zone, replacing any existing zone with the same id.
func (x *Index) Add(zone *Zone) {
	x.lock.Lock()
	defer x.lock.Unlock()
	if _, exists := x.zones[zone.ID]; !exists {
		x.order = append(x.order, zone.ID)
	}
	x.zones[zone.ID] = zone
	x.rebuild()
	x.log.Infof("Zone added: %v (id %v)", zone.Name, zone.ID)
}

// Remove deletes the zone. Returns false if the id is unknown.
func (x *Index) Remove(id string) bool {
	x.lock.Lock()
	defer x.lock.Unlock()
	if _, exists := x.zones[id]; !exists {
		return false
	}
	delete(x.zones, id)
	for i, zid := range x.order {
		if zid == id {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}
	x.rebuild()
	x.log.Infof("Zone removed: %v", id)
	return true
}

func (x *Index) Get(id string) *Zone {
	x.lock.RLock()
	defer x.lock.RUnlock()
	return x.zones[id]
}

// All returns the zones in insertion order.
func (x *Index) All() []*Zone {
	x.lock.RLock()
	defer x.lock.RUnlock()
	all := make([]*Zone, 0, len(x.order))
	for _, id := range x.order {
		all = append(all, x.zones[id])
	}
	return all
}

// Enabled returns the enabled zones in insertion order.
func (x *Index) Enabled() []*Zone {
	x.lock.RLock()
	defer x.lock.RUnlock()
	return x.enabledNoLock()
}

func (x *Index) enabledNoLock() []*Zone {
	enabled := []*Zone{}
	for _, id := range x.order {
		if z := x.zones[id]; z.Enabled {
			enabled = append(enabled, z)
		}
	}
	return enabled
}

// ContainingZones returns the ids of all enabled zones whose shape
// contains the point, in insertion order.
func (x *Index) ContainingZones(p geom.Point) []string {
	x.lock.RLock()
	defer x.lock.RUnlock()
	if x.fb == nil {
		return nil
	}
	candidates := x.fb.SearchFast(p.X, p.Y, p.X, p.Y, nil)
	// flatbush returns hits in index layout order; restore insertion order
	hit := make([]bool, len(x.fbZones))
	for _, c := range candidates {
		hit[c] = true
	}
	ids := []string{}
	for i, z := range x.fbZones {
		if hit[i] && z.ContainsPoint(p) {
			ids = append(ids, z.ID)
		}
	}
	return ids
}

func (x *Index) Clear() {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.zones = map[string]*Zone{}
	x.order = nil
	x.rebuild()
	x.log.Infof("All zones cleared")
}

// rebuild recreates the flatbush index. Caller holds the write lock.
func (x *Index) rebuild() {
	enabled := x.enabledNoLock()
	if len(enabled) == 0 {
		x.fb = nil
		x.fbZones = nil
		return
	}
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(enabled))
	for _, z := range enabled {
		b := z.Bounds()
		fb.Add(b.X, b.Y, b.X2(), b.Y2())
	}
	fb.Finish()
	x.fb = fb
	x.fbZones = enabled
}
