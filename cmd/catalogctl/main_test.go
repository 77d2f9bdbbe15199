package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const caps = `<?xml version="1.0"?>
<WMS_Capabilities version="1.3.0">
  <Service><Name>WMS</Name><Title>Demo</Title></Service>
  <Capability>
    <Layer>
      <Name>Rain</Name>
      <EX_GeographicBoundingBox>
        <westBoundLongitude>1</westBoundLongitude>
        <eastBoundLongitude>2</eastBoundLongitude>
        <southBoundLatitude>3</southBoundLatitude>
        <northBoundLatitude>4</northBoundLatitude>
      </EX_GeographicBoundingBox>
    </Layer>
  </Capability>
</WMS_Capabilities>`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func capsFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "caps.xml")
	if err := os.WriteFile(p, []byte(caps), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestResolve_FromFile(t *testing.T) {
	out, err := execute(t, "resolve", "-u", "http://maps.example/wms", "-l", "Rain", "-f", capsFile(t))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var got struct {
		State     string     `json:"state"`
		Rectangle [4]float64 `json:"rectangle"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.State != "ready" || got.Rectangle != [4]float64{1, 3, 2, 4} {
		t.Fatalf("got %+v", got)
	}
}

func TestResolve_MissingFileFails(t *testing.T) {
	_, err := execute(t, "resolve", "-u", "http://maps.example/wms", "-l", "Rain", "-f", filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil || !strings.Contains(err.Error(), "GetCapabilities") {
		t.Fatalf("err=%v", err)
	}
}

func TestMetadata_LayerNotFound(t *testing.T) {
	out, err := execute(t, "metadata", "-u", "http://maps.example/wms", "-l", "Snow", "-f", capsFile(t))
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if !strings.Contains(out, "Layer information not found in GetCapabilities operation response.") {
		t.Fatalf("out=%s", out)
	}
}

func TestURLs_NoFetch(t *testing.T) {
	out, err := execute(t, "urls", "-u", "http://maps.example/wms?map=x", "-l", "Rain", "--wms-version", "1.1.1", "--time", "2024-01-01")
	if err != nil {
		t.Fatalf("urls: %v", err)
	}
	for _, want := range []string{"version=1.1.1", "GetLegendGraphic", `"time": "2024-01-01"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestRequiredFlags(t *testing.T) {
	if _, err := execute(t, "resolve", "-l", "Rain"); err == nil {
		t.Fatalf("expected error without --url")
	}
}
