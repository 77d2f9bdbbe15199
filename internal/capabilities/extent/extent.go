// Package extent reads geographic bounding boxes from layer nodes.
//
// Boxes are plain west/south/east/north degrees. Boxes crossing the
// antimeridian (west > east) are not special-cased anywhere in this package.
package extent

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

var (
	ErrNoLayers      = errors.New("extent: no layers to merge")
	ErrLayerNotFound = errors.New("extent: layer not found")
)

type GeoBoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// World is the box used when nothing more specific is known.
var World = GeoBoundingBox{West: -180, South: -90, East: 180, North: 90}

func (b GeoBoundingBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.West, b.South, b.East, b.North)
}

// Union is the element-wise min/max of the two boxes.
func (b GeoBoundingBox) Union(o GeoBoundingBox) GeoBoundingBox {
	return GeoBoundingBox{
		West:  math.Min(b.West, o.West),
		South: math.Min(b.South, o.South),
		East:  math.Max(b.East, o.East),
		North: math.Max(b.North, o.North),
	}
}

func (b GeoBoundingBox) Intersects(o GeoBoundingBox) bool {
	return b.West <= o.East && o.West <= b.East && b.South <= o.North && o.South <= b.North
}

// MarshalJSON writes [west, south, east, north].
func (b GeoBoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.West, b.South, b.East, b.North})
}

func (b *GeoBoundingBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bounding box: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("bounding box: expected 4 values, got %d", len(v))
	}
	*b = GeoBoundingBox{West: v[0], South: v[1], East: v[2], North: v[3]}
	return nil
}

// Parse reads "west,south,east,north".
func Parse(s string) (GeoBoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return GeoBoundingBox{}, errors.New("expected 4 comma-separated values: west,south,east,north")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return GeoBoundingBox{}, fmt.Errorf("value %d: %w", i, err)
		}
		v[i] = f
	}
	return GeoBoundingBox{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}

// Of returns the box of a single layer. EX_GeographicBoundingBox (WMS 1.3.0)
// is preferred over LatLonBoundingBox (1.0.0 to 1.1.1). ok is false when the
// layer declares neither.
func Of(layer *tree.Node) (box GeoBoundingBox, ok bool, err error) {
	if egbb := first(layer.Get("EX_GeographicBoundingBox")); egbb != nil {
		box, err = read(egbb, "westBoundLongitude", "southBoundLatitude", "eastBoundLongitude", "northBoundLatitude")
		if err != nil {
			return GeoBoundingBox{}, false, fmt.Errorf("EX_GeographicBoundingBox: %w", err)
		}
		return box, true, nil
	}
	if llbb := first(layer.Get("LatLonBoundingBox")); llbb != nil {
		box, err = read(llbb, "minx", "miny", "maxx", "maxy")
		if err != nil {
			return GeoBoundingBox{}, false, fmt.Errorf("LatLonBoundingBox: %w", err)
		}
		return box, true, nil
	}
	return GeoBoundingBox{}, false, nil
}

// Merge unions the boxes of every layer. All layers must be present: callers
// filter lookups first and a nil entry fails with ErrLayerNotFound. Layers
// without a box are skipped; ok is false when none had one.
func Merge(layers []*tree.Node) (box GeoBoundingBox, ok bool, err error) {
	if len(layers) == 0 {
		return GeoBoundingBox{}, false, ErrNoLayers
	}
	for i, l := range layers {
		if l == nil {
			return GeoBoundingBox{}, false, fmt.Errorf("layer %d: %w", i, ErrLayerNotFound)
		}
	}
	for _, l := range layers {
		b, found, err := Of(l)
		if err != nil {
			return GeoBoundingBox{}, false, fmt.Errorf("layer %q: %w", l.Str("Name"), err)
		}
		if !found {
			continue
		}
		if !ok {
			box, ok = b, true
			continue
		}
		box = box.Union(b)
	}
	return box, ok, nil
}

func first(n *tree.Node) *tree.Node {
	all := n.All()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func read(n *tree.Node, w, s, e, no string) (GeoBoundingBox, error) {
	var v [4]float64
	for i, k := range []string{w, s, e, no} {
		raw := strings.TrimSpace(n.Str(k))
		if raw == "" {
			return GeoBoundingBox{}, fmt.Errorf("missing %s", k)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return GeoBoundingBox{}, fmt.Errorf("%s: %w", k, err)
		}
		v[i] = f
	}
	return GeoBoundingBox{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}
