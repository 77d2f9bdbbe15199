// Package ogc builds the OGC web service URLs and request parameters derived
// for a catalog item.
package ogc

import (
	"maps"
	"math"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/layers"
)

// CleanURL strips the query and fragment from a service URL.
func CleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// CapabilitiesURL is the GetCapabilities request for a service.
func CapabilitiesURL(base, service, version string) string {
	return CleanURL(base) + "?service=" + service + "&version=" + version + "&request=GetCapabilities"
}

// FeatureQueryURL is the WFS GetFeature request for the given layer list.
func FeatureQueryURL(base, layerList string) string {
	return CleanURL(base) + "?service=WFS&version=1.1.0&request=GetFeature&typeName=" + layerList +
		"&srsName=EPSG:4326&maxFeatures=1000"
}

// LegendURL is the GetLegendGraphic request for the first layer in the list.
func LegendURL(base, layerList string) string {
	return CleanURL(base) + "?service=WMS&version=1.3.0&request=GetLegendGraphic&format=image/png&layer=" +
		layers.First(layerList)
}

// MergeParams combines parameter sets. Earlier sets win on key conflicts;
// no input is modified.
func MergeParams(sets ...map[string]string) map[string]string {
	out := map[string]string{}
	for i := len(sets) - 1; i >= 0; i-- {
		maps.Copy(out, sets[i])
	}
	return out
}

// Values turns a parameter set into url.Values.
func Values(params map[string]string) url.Values {
	v := url.Values{}
	for k, p := range params {
		v.Set(k, p)
	}
	return v
}

const (
	// WGS84 semi-major axis in meters
	earthRadius = 6378137.0
	tileWidth   = 256
	// standardized rendering pixel size, WMS 1.3.0 section 7.2.4.6.9
	metersPerPixel = 0.00028
	scaleEpsilon   = 1e-6
)

// MaximumLevel is the deepest tile level worth requesting for a layer whose
// smallest scale denominator is minScaleDenominator. It reports false when
// the denominator is too small to give a level.
func MaximumLevel(minScaleDenominator float64) (int, bool) {
	if math.IsNaN(minScaleDenominator) || minScaleDenominator <= scaleEpsilon {
		return 0, false
	}
	circumference := 2 * math.Pi * earthRadius
	level0ScaleDenominator := circumference / tileWidth / metersPerPixel
	lvl := math.Floor(math.Log2(level0ScaleDenominator / (minScaleDenominator - scaleEpsilon)))
	if math.IsNaN(lvl) || math.IsInf(lvl, 0) {
		return 0, false
	}
	return int(lvl), true
}
