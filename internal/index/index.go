// Package index answers "which items cover this area" over resolved item
// rectangles with an R-tree.
package index

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
)

// ErrInvalidBox is returned for boxes with west > east or south > north.
// Boxes crossing the antimeridian are not supported.
var ErrInvalidBox = errors.New("index: invalid bounding box")

// R-tree rectangles need a non-zero extent; point-like boxes are padded.
const minSpan = 0.0001

type entry struct {
	id   string
	box  extent.GeoBoundingBox
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

type Index struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	entries map[string]*entry
}

func New() *Index {
	return &Index{
		tree:    rtreego.NewTree(2, 25, 50),
		entries: map[string]*entry{},
	}
}

func toRect(b extent.GeoBoundingBox) (rtreego.Rect, error) {
	if b.West > b.East || b.South > b.North {
		return rtreego.Rect{}, fmt.Errorf("%w: %s", ErrInvalidBox, b)
	}
	lengths := []float64{max(b.East-b.West, minSpan), max(b.North-b.South, minSpan)}
	r, err := rtreego.NewRect(rtreego.Point{b.West, b.South}, lengths)
	if err != nil {
		return rtreego.Rect{}, fmt.Errorf("%w: %w", ErrInvalidBox, err)
	}
	return r, nil
}

// Upsert sets the rectangle of id, replacing any earlier one.
func (x *Index) Upsert(id string, box extent.GeoBoundingBox) error {
	r, err := toRect(box)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.entries[id]; ok {
		x.tree.Delete(old)
	}
	e := &entry{id: id, box: box, rect: r}
	x.entries[id] = e
	x.tree.Insert(e)
	return nil
}

func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.entries[id]
	if !ok {
		return false
	}
	delete(x.entries, id)
	return x.tree.Delete(e)
}

// Search returns the ids whose rectangle intersects box, sorted.
func (x *Index) Search(box extent.GeoBoundingBox) ([]string, error) {
	q, err := toRect(box)
	if err != nil {
		return nil, err
	}
	x.mu.RLock()
	hits := x.tree.SearchIntersect(q)
	x.mu.RUnlock()

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*entry).id)
	}
	slices.Sort(out)
	return out, nil
}

// Get returns the indexed rectangle of id.
func (x *Index) Get(id string) (extent.GeoBoundingBox, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[id]
	if !ok {
		return extent.GeoBoundingBox{}, false
	}
	return e.box, true
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
