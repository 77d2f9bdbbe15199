package catalog

import (
	"errors"
	"testing"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/timedim"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

func mustParse(t *testing.T, b []byte) *tree.Node {
	t.Helper()
	doc, err := tree.Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestResolve_PartialLayerList(t *testing.T) {
	res := Resolve(mustParse(t, capsWithTime("2020-01-01,2020-01-02")), "Rain, Nope", true)
	if !errors.Is(res.DataSourceErr, ErrLayerNotFound) {
		t.Fatalf("err=%v", res.DataSourceErr)
	}
	if res.Rectangle != nil || res.Intervals != nil || res.DataSource != nil {
		t.Fatal("partial matches must not populate layer values")
	}
	if res.Service == nil {
		t.Fatal("service metadata should resolve independently")
	}
}

func TestResolve_MatchesByTitle(t *testing.T) {
	res := Resolve(mustParse(t, capsWithTime("2020-01-01,2020-01-02")), "Rainfall", true)
	if res.DataSourceErr != nil || res.Rectangle == nil || res.Rectangle.West != -10 {
		t.Fatalf("res=%+v", res)
	}
}

func TestResolve_LegacyExtentDimension(t *testing.T) {
	doc := []byte(`<WMT_MS_Capabilities version="1.1.1">
  <Service><Name>OGC:WMS</Name></Service>
  <Capability>
    <Layer>
      <Name>Temp</Name>
      <LatLonBoundingBox minx="100" miny="-45" maxx="160" maxy="-10"/>
      <Dimension name="time" units="ISO8601"/>
      <Extent name="elevation">0</Extent>
      <Extent name="time">2021-06-01T00:00Z,2021-06-01T06:00Z</Extent>
    </Layer>
  </Capability>
</WMT_MS_Capabilities>`)
	res := Resolve(mustParse(t, doc), "Temp", true)
	if res.IntervalsErr != nil || len(res.Intervals) != 2 {
		t.Fatalf("intervals=%v err=%v", res.Intervals, res.IntervalsErr)
	}
	if d := res.Intervals[1].Duration().Hours(); d != 6 {
		t.Fatalf("tail duration=%vh want 6", d)
	}
	if res.Rectangle == nil || res.Rectangle.East != 160 {
		t.Fatalf("rectangle=%v", res.Rectangle)
	}
}

func TestResolve_MissingTimeExtent(t *testing.T) {
	doc := []byte(`<WMT_MS_Capabilities><Capability><Layer>
  <Name>Temp</Name><Dimension name="time" units="ISO8601"/>
</Layer></Capability></WMT_MS_Capabilities>`)
	res := Resolve(mustParse(t, doc), "Temp", true)
	if !errors.Is(res.IntervalsErr, timedim.ErrMissingExtent) {
		t.Fatalf("err=%v", res.IntervalsErr)
	}
	if res.DataSourceErr != nil {
		t.Fatalf("dimension errors must not fail the layer: %v", res.DataSourceErr)
	}
}

func TestResolve_NoCapabilityBlock(t *testing.T) {
	res := Resolve(mustParse(t, []byte(`<WMS_Capabilities><Service><Name>WMS</Name></Service></WMS_Capabilities>`)), "Rain", true)
	if !errors.Is(res.DataSourceErr, ErrLayerNotFound) || res.ServiceErr != nil {
		t.Fatalf("res=%+v", res)
	}
}

func TestProfile_DefaultsAreCopies(t *testing.T) {
	p := WMS("")
	d := p.DefaultParameters()
	d["format"] = "image/jpeg"
	if p.DefaultParameters()["format"] != "image/png" {
		t.Fatal("defaults mutated through a returned copy")
	}
	if p.Version != "1.3.0" || p.Type != "wms" || p.TypeName != "Web Map Service (WMS)" {
		t.Fatalf("profile=%+v", p)
	}
}

func TestItem_ImageryRequest(t *testing.T) {
	it := New("http://example.org/wms?map=x", "Rain")
	it.SetParameters(map[string]string{"styles": "contour", "time": "user"})
	it.SetMinScaleDenominator(17471320)
	it.SetGetFeatureInfoFormats([]string{"application/json"})

	req := it.ImageryRequest("2020-01-02")
	if req.URL != "http://example.org/wms" || req.Layers != "Rain" {
		t.Fatalf("req=%+v", req)
	}
	if req.Parameters["time"] != "2020-01-02" {
		t.Fatalf("time parameter should win: %v", req.Parameters)
	}
	if req.Parameters["styles"] != "contour" || req.Parameters["format"] != "image/png" || req.Parameters["tiled"] != "true" {
		t.Fatalf("params=%v", req.Parameters)
	}
	if req.TilingScheme != WebMercator || req.MaximumLevel == nil || *req.MaximumLevel != 5 {
		t.Fatalf("tiling=%s level=%v", req.TilingScheme, req.MaximumLevel)
	}

	if it.ImageryRequest("").Parameters["time"] != "user" {
		t.Fatal("without a time the user parameter applies")
	}
}
