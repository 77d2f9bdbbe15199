// Package mapper converts resolved item extents into H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
)

type Interface interface {
	CellsForBox(box extent.GeoBoundingBox, res int) ([]string, error)
}
