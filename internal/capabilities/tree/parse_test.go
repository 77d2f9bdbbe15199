package tree

import (
	"encoding/json"
	"errors"
	"testing"
)

const sampleCaps = `<?xml version="1.0" encoding="UTF-8"?>
<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms" xmlns:xlink="http://www.w3.org/1999/xlink">
  <Service>
    <Name>WMS</Name>
    <Title>Demo service</Title>
    <OnlineResource xlink:type="simple" xlink:href="http://example.org/wms"/>
  </Service>
  <Capability>
    <Layer>
      <Title>Root</Title>
      <Layer queryable="1">
        <Name>Rain</Name>
        <Dimension name="time" units="ISO8601">2020-01-01,2020-01-02</Dimension>
      </Layer>
      <Layer>
        <Name>Wind</Name>
      </Layer>
      <Layer>
        <Name>Snow</Name>
      </Layer>
    </Layer>
  </Capability>
</WMS_Capabilities>`

func TestParse_RepeatedTagsBecomeSequence(t *testing.T) {
	root, err := Parse([]byte(sampleCaps))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	top := root.Get("Capability").Get("Layer")
	if !top.IsMapping() {
		t.Fatalf("single top layer kind=%s want mapping", top.Kind())
	}
	kids := top.Get("Layer")
	if !kids.IsSequence() {
		t.Fatalf("repeated Layer kind=%s want sequence", kids.Kind())
	}
	if kids.Len() != 3 {
		t.Fatalf("len=%d want 3", kids.Len())
	}
	names := []string{}
	for _, l := range kids.Items() {
		names = append(names, l.Str("Name"))
	}
	if names[0] != "Rain" || names[1] != "Wind" || names[2] != "Snow" {
		t.Fatalf("order=%v", names)
	}
}

func TestParse_SingletonIsNotWrapped(t *testing.T) {
	root, err := Parse([]byte(sampleCaps))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	name := root.Get("Service").Get("Name")
	if !name.IsScalar() || name.Text() != "WMS" {
		t.Fatalf("Service/Name = %s %q", name.Kind(), name.Text())
	}
	if got := len(name.All()); got != 1 {
		t.Fatalf("All() len=%d want 1", got)
	}
}

func TestParse_AttributesAndText(t *testing.T) {
	root, err := Parse([]byte(sampleCaps))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rain := root.Get("Capability").Get("Layer").Get("Layer").Items()[0]
	if rain.Str("queryable") != "1" {
		t.Fatalf("queryable attr missing: %q", rain.Str("queryable"))
	}
	dim := rain.Get("Dimension")
	if !dim.IsMapping() {
		t.Fatalf("Dimension kind=%s want mapping", dim.Kind())
	}
	if dim.Str("name") != "time" || dim.Text() != "2020-01-01,2020-01-02" {
		t.Fatalf("dimension name=%q text=%q", dim.Str("name"), dim.Text())
	}
	if root.Has("xmlns") || root.Has("xlink") {
		t.Fatalf("namespace declarations should be dropped")
	}
	href := root.Get("Service").Get("OnlineResource").Str("href")
	if href != "http://example.org/wms" {
		t.Fatalf("href=%q", href)
	}
}

func TestParse_Latin1(t *testing.T) {
	doc := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><Root><Title>Gen\xe8ve</Title></Root>")
	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := root.Str("Title"); got != "Genève" {
		t.Fatalf("title=%q", got)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte("   ")); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err=%v want ErrEmptyDocument", err)
	}
	if _, err := Parse([]byte("<a><b></a>")); err == nil {
		t.Fatal("expected error for malformed markup")
	}
}

func TestNewMapping_CollapsesRepeatedNames(t *testing.T) {
	m := NewMapping(
		Field{Name: "A", Value: NewScalar("1")},
		Field{Name: "B", Value: NewScalar("x")},
		Field{Name: "A", Value: NewScalar("2")},
		Field{Name: "A", Value: NewScalar("3")},
	)
	a := m.Get("A")
	if !a.IsSequence() || a.Len() != 3 {
		t.Fatalf("A kind=%s len=%d", a.Kind(), a.Len())
	}
	if m.Fields()[0].Name != "A" || m.Fields()[1].Name != "B" {
		t.Fatalf("field order changed: %+v", m.Fields())
	}
}

func TestNode_MarshalJSON(t *testing.T) {
	m := NewMappingText("v",
		Field{Name: "name", Value: NewScalar("time")},
		Field{Name: "X", Value: NewSequence(NewScalar("1"), NewScalar("2"))},
	)
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"#text":"v","name":"time","X":["1","2"]}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}
}

func TestNilNodeAccessors(t *testing.T) {
	var n *Node
	if n.Get("x") != nil || n.Str("x") != "" || n.All() != nil || n.Len() != 0 {
		t.Fatal("nil node accessors should return zero values")
	}
}
