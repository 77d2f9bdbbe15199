package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/core/observability"
	"github.com/mohammed-shakir/wms-catalog/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestClient_SetGetScanDel(t *testing.T) {
	rc, _ := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, k := range []string{"p:a", "p:b", "other"} {
		if err := rc.Set(ctx, k, []byte("v-"+k), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	v, ok, err := rc.Get(ctx, "p:a")
	if err != nil || !ok || string(v) != "v-p:a" {
		t.Fatalf("Get=%q ok=%v err=%v", v, ok, err)
	}
	if _, ok, err := rc.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key ok=%v err=%v", ok, err)
	}

	ks, err := rc.Scan(ctx, "p:")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	sort.Strings(ks)
	if len(ks) != 2 || ks[0] != "p:a" || ks[1] != "p:b" {
		t.Fatalf("scan=%v", ks)
	}

	got, err := rc.MGet(ctx, []string{"p:a", "nope"})
	if err != nil || len(got) != 1 {
		t.Fatalf("MGet=%v err=%v", got, err)
	}

	if err := rc.Del(ctx, "p:a", "p:b"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ks, _ := rc.Scan(ctx, "p:"); len(ks) != 0 {
		t.Fatalf("keys left after Del: %v", ks)
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	rc, _ := newMini(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, "127.0.0.1:1", WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatal("expected ping error")
	}
	if _, err := New(ctx, ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestItemStore_RoundTrip(t *testing.T) {
	rc, mr := newMini(t)
	s := NewItemStore(rc, "")
	ctx := context.Background()

	legend := "http://legend.example.org/l.png"
	def := catalog.Definition{
		Type:      "wms",
		URL:       "http://example.org/wms",
		Layers:    "Rain",
		LegendURL: &legend,
		Rectangle: &extent.GeoBoundingBox{West: 1, South: 2, East: 3, North: 4},
	}
	if err := s.Save(ctx, "Rain-1", def); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("catalog:item:Rain-1") {
		t.Fatalf("expected key under default prefix, have %v", mr.Keys())
	}

	got, ok, err := s.Load(ctx, "Rain-1")
	if err != nil || !ok {
		t.Fatalf("Load ok=%v err=%v", ok, err)
	}
	if got.URL != def.URL || got.LegendURL == nil || *got.LegendURL != legend || *got.Rectangle != *def.Rectangle {
		t.Fatalf("got %+v", got)
	}

	_ = mr.Set("catalog:item:broken", "{not json")
	all, err := s.LoadAll(ctx)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected decode error for broken entry, got %v", err)
	}
	if _, ok := all["Rain-1"]; !ok || len(all) != 1 {
		t.Fatalf("all=%v", all)
	}

	if err := s.Delete(ctx, "Rain-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "Rain-1"); ok {
		t.Fatal("item still present after Delete")
	}
}

func TestMetrics_StoreOps(t *testing.T) {
	p := metrics.Init(metrics.Config{Enabled: true})
	observability.Init(p.Registerer(), true)

	rc, _ := newMini(t)
	ctx := context.Background()
	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `store_op_duration_seconds_bucket{op="set"`) ||
		!strings.Contains(body, `store_op_duration_seconds_bucket{op="get"`) {
		t.Fatalf("missing store_op_duration_seconds; got:\n%s", body)
	}
}
