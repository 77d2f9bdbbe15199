package catalog

import (
	"fmt"
	"maps"
)

// Profile is the immutable per-type configuration of a catalog item.
type Profile struct {
	Type     string
	TypeName string
	Protocol string
	Version  string

	defaults map[string]string
}

var wmsDefaults = map[string]string{
	"transparent": "true",
	"format":      "image/png",
	"exceptions":  "application/vnd.ogc.se_xml",
	"styles":      "",
	"tiled":       "true",
}

// WMS returns the profile of a Web Map Service item. An empty version means
// 1.3.0.
func WMS(version string) Profile {
	if version == "" {
		version = "1.3.0"
	}
	return Profile{
		Type:     "wms",
		TypeName: "Web Map Service (WMS)",
		Protocol: "WMS",
		Version:  version,
		defaults: wmsDefaults,
	}
}

// DefaultParameters returns a fresh copy of the imagery request defaults.
func (p Profile) DefaultParameters() map[string]string {
	return maps.Clone(p.defaults)
}

func (p Profile) String() string {
	return fmt.Sprintf("%s %s", p.Protocol, p.Version)
}

// TilingScheme selects the tile grid requested from the renderer.
type TilingScheme string

const (
	WebMercator TilingScheme = "web-mercator"
	Geographic  TilingScheme = "geographic"
)

func ParseTilingScheme(s string) (TilingScheme, error) {
	switch TilingScheme(s) {
	case "", WebMercator:
		return WebMercator, nil
	case Geographic:
		return Geographic, nil
	default:
		return "", fmt.Errorf("unknown tiling scheme %q", s)
	}
}
