package h3mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
)

var (
	ErrTooManyCells = errors.New("h3mapper: coverage exceeds cell limit")
	ErrInvalidBox   = errors.New("h3mapper: invalid bounding box")
)

const (
	res0Cells = 122
	// polyfill misbehaves on loops wider than a hemisphere
	maxSliceDegrees = 90.0
)

type Mapper struct {
	maxCells int
}

// New returns a mapper refusing coverages estimated above maxCells.
// maxCells <= 0 means 100000.
func New(maxCells int) *Mapper {
	if maxCells <= 0 {
		maxCells = 100_000
	}
	return &Mapper{maxCells: maxCells}
}

// CellsForBox returns the sorted, de-duplicated cells at res whose centers
// fall inside box. Boxes crossing the antimeridian are rejected.
func (m *Mapper) CellsForBox(box extent.GeoBoundingBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if box.West > box.East || box.South > box.North ||
		box.West < -180 || box.East > 180 || box.South < -90 || box.North > 90 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBox, box)
	}
	if est := EstimateCells(box, res); est > float64(m.maxCells) {
		return nil, fmt.Errorf("%w: ~%.0f cells at res %d (limit %d)", ErrTooManyCells, est, res, m.maxCells)
	}

	seen := make(map[string]struct{})
	var out []string
	for west := box.West; west < box.East; west += maxSliceDegrees {
		east := math.Min(west+maxSliceDegrees, box.East)
		// Build a rectangular loop (lon,lat in EPSG:4326). v4 wants degrees.
		outer := h3.GeoLoop{
			{Lat: box.South, Lng: west},
			{Lat: box.South, Lng: east},
			{Lat: box.North, Lng: east},
			{Lat: box.North, Lng: west},
		}
		cells, err := polyfill(outer, res)
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// EstimateCells approximates how many cells at res cover box from its share
// of the sphere's surface.
func EstimateCells(box extent.GeoBoundingBox, res int) float64 {
	rad := math.Pi / 180
	share := (box.East - box.West) / 360 * (math.Sin(box.North*rad) - math.Sin(box.South*rad)) / 2
	return math.Abs(share) * res0Cells * math.Pow(7, float64(res))
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func polyfill(outer h3.GeoLoop, res int) ([]string, error) {
	// v4 returns ([]h3.Cell, error)
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, idx.String())
	}
	return out, nil
}
