package catalog

import (
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/timedim"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog/override"
)

// Resolved is a point-in-time view of every derived property, with the
// source each value came from.
type Resolved struct {
	Type         string                `json:"type"`
	Name         string                `json:"name,omitempty"`
	URL          string                `json:"url"`
	Layers       string                `json:"layers"`
	State        State                 `json:"state"`
	DataURL      string                `json:"dataUrl,omitempty"`
	DataURLType  string                `json:"dataUrlType"`
	MetadataURL  string                `json:"metadataUrl,omitempty"`
	LegendURL    string                `json:"legendUrl,omitempty"`
	Rectangle    extent.GeoBoundingBox `json:"rectangle"`
	Intervals    timedim.Sequence      `json:"intervals,omitempty"`
	MaximumLevel *int                  `json:"maximumLevel,omitempty"`
	Sources      map[string]string     `json:"sources"`
	ServiceError string                `json:"serviceErrorMessage,omitempty"`
	LayerError   string                `json:"dataSourceErrorMessage,omitempty"`
}

// Resolved reads every derived property under one lock.
func (it *Item) Resolved() Resolved {
	it.mu.RLock()
	r := Resolved{
		Type:    it.profile.Type,
		Name:    it.name,
		URL:     it.url,
		Layers:  it.layers,
		Sources: map[string]string{},
	}
	r.DataURL = resolveInto(r.Sources, "dataUrl", &it.dataURL)
	r.DataURLType = resolveInto(r.Sources, "dataUrlType", &it.dataURLType)
	r.MetadataURL = resolveInto(r.Sources, "metadataUrl", &it.metadataURL)
	r.LegendURL = resolveInto(r.Sources, "legendUrl", &it.legendURL)
	r.Rectangle = resolveInto(r.Sources, "rectangle", &it.rectangle)
	r.Intervals = append(timedim.Sequence(nil), resolveInto(r.Sources, "intervals", &it.intervals)...)
	m := it.current
	it.mu.RUnlock()

	if lvl, ok := it.MaximumLevel(); ok {
		r.MaximumLevel = &lvl
	}
	if m != nil {
		r.State = m.State()
		r.ServiceError = m.ServiceErrorMessage()
		r.LayerError = m.DataSourceErrorMessage()
	}
	return r
}

func resolveInto[T any](sources map[string]string, key string, f *override.Field[T]) T {
	v, src := f.Resolve()
	sources[key] = src.String()
	return v
}
