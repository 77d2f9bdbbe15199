package h3mapper

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
)

func TestCellsForBox_SortedUniqueDeterministic(t *testing.T) {
	m := New(0)
	bb := extent.GeoBoundingBox{West: 17.95, South: 59.30, East: 18.15, North: 59.40}

	cells, err := m.CellsForBox(bb, 8)
	if err != nil {
		t.Fatalf("CellsForBox err: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("expected non-empty cells for bbox")
	}
	if !sort.StringsAreSorted(cells) || hasDups(cells) {
		t.Fatalf("cells must be sorted + unique")
	}
	again, _ := m.CellsForBox(bb, 8)
	if !reflect.DeepEqual(cells, again) {
		t.Fatalf("expected identical output for identical input")
	}
}

func TestCellsForBox_WideBoxIsSliced(t *testing.T) {
	m := New(0)
	cells, err := m.CellsForBox(extent.GeoBoundingBox{West: -170, South: -60, East: 170, North: 60}, 1)
	if err != nil {
		t.Fatalf("CellsForBox: %v", err)
	}
	if len(cells) < 100 || hasDups(cells) {
		t.Fatalf("wide coverage looks wrong: %d cells", len(cells))
	}
}

func TestCellsForBox_Limits(t *testing.T) {
	m := New(1000)
	if _, err := m.CellsForBox(extent.World, 6); !errors.Is(err, ErrTooManyCells) {
		t.Fatalf("err=%v want ErrTooManyCells", err)
	}
	bb := extent.GeoBoundingBox{West: 11, South: 55, East: 12, North: 56}
	if _, err := m.CellsForBox(bb, -1); err == nil {
		t.Fatalf("expected error for res=-1")
	}
	if _, err := m.CellsForBox(bb, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}
	if _, err := m.CellsForBox(extent.GeoBoundingBox{West: 170, South: 0, East: -170, North: 1}, 3); !errors.Is(err, ErrInvalidBox) {
		t.Fatalf("err=%v want ErrInvalidBox", err)
	}
}

func TestEstimateCells_World(t *testing.T) {
	if got := EstimateCells(extent.World, 0); got < 121 || got > 123 {
		t.Fatalf("world at res 0 = %v want ~122", got)
	}
}

func hasDups(s []string) bool {
	seen := map[string]struct{}{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
