package catalog

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/layers"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/metadata"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/timedim"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

// Resolution is everything derived from one capabilities document for one
// layer list.
type Resolution struct {
	Service    *metadata.Node
	ServiceErr error

	Layers        []*tree.Node
	DataSource    *metadata.Node
	DataSourceErr error

	// Rectangle is nil when no requested layer declares a box.
	Rectangle    *extent.GeoBoundingBox
	RectangleErr error
	Intervals    timedim.Sequence
	// IntervalsErr and RectangleErr only void their own value.
	IntervalsErr error
}

// Resolve searches doc for the comma-separated layer names and derives the
// service and layer metadata, merged extent and, when populateIntervals is
// set, the time intervals. Layer derived values are only filled when every
// requested name matched.
func Resolve(doc *tree.Node, names string, populateIntervals bool) Resolution {
	var res Resolution

	if svc := doc.Get("Service"); svc != nil {
		res.Service = metadata.New("Service", svc)
	} else {
		res.ServiceErr = ErrServiceMetadataMissing
	}

	found := layers.FindInCapabilities(doc, names)
	if !layers.Complete(found) {
		res.DataSourceErr = fmt.Errorf("%w: %s", ErrLayerNotFound, strings.Join(layers.Missing(names, found), ", "))
		return res
	}
	res.Layers = found
	res.DataSource = dataSourceTree(names, found)

	box, ok, err := extent.Merge(found)
	switch {
	case err != nil:
		res.RectangleErr = err
	case ok:
		res.Rectangle = &box
	}

	if populateIntervals {
		res.Intervals, res.IntervalsErr = intervals(found)
	}
	return res
}

// A single layer is shown directly; several get one subtree each.
func dataSourceTree(names string, found []*tree.Node) *metadata.Node {
	if len(found) == 1 {
		return metadata.New("Data Source", found[0])
	}
	root := &metadata.Node{Name: "Data Source"}
	for i, name := range layers.Split(names) {
		child := &metadata.Node{Name: "Layer (" + name + ")", Value: found[i]}
		metadata.Build(child, found[i])
		root.Children = append(root.Children, child)
	}
	return root
}

// The first layer, in request order, with a time dimension supplies the
// intervals.
func intervals(found []*tree.Node) (timedim.Sequence, error) {
	for _, l := range found {
		seq, err := timedim.Of(l)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Str("Name"), err)
		}
		if seq != nil {
			return seq, nil
		}
	}
	return nil, nil
}
