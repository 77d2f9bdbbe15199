package metadata

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

const layerXML = `<Layer queryable="1">
  <Name>Rain</Name>
  <Title>Rainfall</Title>
  <KeywordList><Keyword>rain</Keyword><Keyword>weather</Keyword></KeywordList>
  <BoundingBox CRS="EPSG:4326" minx="-5" miny="-10" maxx="5" maxy="10"/>
  <BoundingBox CRS="EPSG:3857" minx="-1113194" miny="-557305" maxx="1113194" maxy="557305"/>
  <Style><Name>default</Name><LegendURL width="20" height="20"><Format>image/png</Format></LegendURL></Style>
</Layer>`

func TestBuild_MirrorsFieldsInOrder(t *testing.T) {
	src, err := tree.Parse([]byte(layerXML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := New("Rain", src)

	var names []string
	for _, c := range root.Children {
		names = append(names, c.Name)
	}
	want := []string{"queryable", "Name", "Title", "KeywordList", "BoundingBox (EPSG:4326)", "BoundingBox (EPSG:3857)", "Style"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Fatalf("children=%v want %v", names, want)
	}

	if n := root.Child("Name"); n.Value.Text() != "Rain" || len(n.Children) != 0 {
		t.Fatalf("scalar leaf wrong: %+v", n)
	}
	kw := root.Child("KeywordList").Child("Keyword")
	if kw == nil || !kw.Value.IsSequence() || len(kw.Children) != 0 {
		t.Fatalf("sequence leaf should have no children: %+v", kw)
	}
	style := root.Child("Style")
	legend := style.Child("LegendURL")
	if legend == nil || legend.Child("Format").Value.Text() != "image/png" {
		t.Fatalf("nested mapping not expanded")
	}
}

func TestBuild_BoundingBoxChildrenExpanded(t *testing.T) {
	src, _ := tree.Parse([]byte(layerXML))
	root := New("Rain", src)
	bb := root.Child("BoundingBox (EPSG:3857)")
	if bb == nil {
		t.Fatal("missing per-CRS bounding box")
	}
	if bb.Child("maxx").Value.Text() != "1113194" {
		t.Fatalf("bounding box children not built: %+v", bb.Children)
	}
	if root.Child("BoundingBox") != nil {
		t.Fatal("plain BoundingBox child should not exist for a sequence")
	}
}

func TestBuild_SingleBoundingBoxKeepsName(t *testing.T) {
	src := tree.NewMapping(tree.Field{Name: "BoundingBox", Value: tree.NewMapping(
		tree.Field{Name: "SRS", Value: tree.NewScalar("EPSG:4326")},
	)})
	root := New("x", src)
	if root.Child("BoundingBox") == nil {
		t.Fatal("singleton BoundingBox should keep its name")
	}
}

func TestBuild_SRSFallback(t *testing.T) {
	src := tree.NewMapping(
		tree.Field{Name: "BoundingBox", Value: tree.NewMapping(tree.Field{Name: "SRS", Value: tree.NewScalar("EPSG:4326")})},
		tree.Field{Name: "BoundingBox", Value: tree.NewMapping(tree.Field{Name: "SRS", Value: tree.NewScalar("EPSG:900913")})},
	)
	root := New("x", src)
	if root.Child("BoundingBox (EPSG:900913)") == nil {
		t.Fatalf("children=%v", root.Children)
	}
}

func TestBuild_ScalarSourceHasNoChildren(t *testing.T) {
	n := &Node{Name: "x"}
	Build(n, tree.NewScalar("v"))
	Build(n, tree.NewSequence(tree.NewScalar("a")))
	Build(n, nil)
	if len(n.Children) != 0 {
		t.Fatalf("children=%v", n.Children)
	}
}

func TestMarshalJSON(t *testing.T) {
	src := tree.NewMapping(
		tree.Field{Name: "Title", Value: tree.NewScalar("A and B")},
		tree.Field{Name: "Keyword", Value: tree.NewSequence(tree.NewScalar("k1"), tree.NewScalar("k2"))},
	)
	b, err := json.Marshal(New("Service", src))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"Service","children":[{"name":"Title","value":"A and B"},{"name":"Keyword","value":["k1","k2"]}]}`
	if string(b) != want {
		t.Fatalf("got %s\nwant %s", b, want)
	}
	if New("Service", src).Len() != 2 {
		t.Fatal("Len mismatch")
	}
}
