package keys

import (
	"regexp"
	"testing"
	"unicode"
)

func TestItemID_Deterministic(t *testing.T) {
	a := ItemID("http://example.org/wms", "Rain,Wind")
	b := ItemID("http://example.org/wms", "Rain,Wind")
	if a != b {
		t.Fatalf("determinism failed:\n a=%s\n b=%s", a, b)
	}
}

func TestItemID_NormalizesSource(t *testing.T) {
	a := ItemID(" http://example.org/wms?service=WMS&request=GetCapabilities ", " Rain , Wind ")
	b := ItemID("http://example.org/wms", "Rain,Wind")
	if a != b {
		t.Fatalf("normalized ids differ:\n a=%s\n b=%s", a, b)
	}
}

func TestItemID_DifferentLayerOrderDiffers(t *testing.T) {
	if ItemID("http://example.org/wms", "Rain,Wind") == ItemID("http://example.org/wms", "Wind,Rain") {
		t.Fatal("layer order is significant")
	}
}

func TestItemID_IsKeySafe(t *testing.T) {
	id := ItemID("http://example.org/wms", "topp:états généraux/2020")
	if !regexp.MustCompile(`^[A-Za-z0-9:_.\-]+-[0-9a-f]{16}$`).MatchString(id) {
		t.Fatalf("unexpected id shape: %s", id)
	}
	for _, r := range id {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into id: %q in %s", r, id)
		}
	}
	if !ValidID(id) {
		t.Fatalf("ValidID(%s)=false", id)
	}
	if ValidID("has space") || ValidID("") {
		t.Fatal("ValidID accepted an unsafe id")
	}
}

func TestStoreKey(t *testing.T) {
	if got := StoreKey("catalog:item:", "Rain-00ff"); got != "catalog:item:Rain-00ff" {
		t.Fatalf("key=%s", got)
	}
}
