package catalog

import (
	"github.com/mohammed-shakir/wms-catalog/internal/core/ogc"
	"github.com/mohammed-shakir/wms-catalog/internal/corsproxy"
)

// ImageryRequest is what the renderer needs to draw the item.
type ImageryRequest struct {
	URL                   string            `json:"url"`
	Layers                string            `json:"layers"`
	Parameters            map[string]string `json:"parameters"`
	GetFeatureInfoFormats []string          `json:"getFeatureInfoFormats,omitempty"`
	TilingScheme          TilingScheme      `json:"tilingScheme"`
	MaximumLevel          *int              `json:"maximumLevel,omitempty"`
}

// ImageryRequest builds the render hand-off. A non-empty time is sent as the
// TIME parameter; it wins over user parameters, which win over the profile
// defaults.
func (it *Item) ImageryRequest(time string) ImageryRequest {
	var timeParam map[string]string
	if time != "" {
		timeParam = map[string]string{"time": time}
	}

	it.mu.RLock()
	req := ImageryRequest{
		URL:                   corsproxy.Apply(it.proxy, ogc.CleanURL(it.url)),
		Layers:                it.layers,
		Parameters:            ogc.MergeParams(timeParam, it.parameters, it.profile.DefaultParameters()),
		GetFeatureInfoFormats: append([]string(nil), it.featureInfoFormats...),
		TilingScheme:          it.tilingScheme,
	}
	maxScale, hasMax := deref(it.maxScale)
	it.mu.RUnlock()

	if lvl, ok := it.MaximumLevel(); ok {
		req.MaximumLevel = &lvl
	}
	if hasMax && maxScale > hidingScaleDenominator {
		it.logger.Warn("ArcGIS minScale setting may hide data", "url", req.URL, "max_scale_denominator", maxScale)
	}
	return req
}
