package catalog

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/timedim"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog/override"
)

var ErrInvalidDefinition = errors.New("invalid item definition")

// Definition is the saved form of an item. Overridable properties are stored
// only when explicitly set, under their raw names, so a restored item keeps
// deriving everything else.
type Definition struct {
	Type                               string            `json:"type,omitempty"`
	Name                               string            `json:"name,omitempty"`
	URL                                string            `json:"url"`
	Layers                             string            `json:"layers"`
	Parameters                         map[string]string `json:"parameters,omitempty"`
	TilingScheme                       TilingScheme      `json:"tilingScheme,omitempty"`
	GetFeatureInfoFormats              []string          `json:"getFeatureInfoFormats,omitempty"`
	PopulateIntervalsFromTimeDimension *bool             `json:"populateIntervalsFromTimeDimension,omitempty"`
	MinScaleDenominator                *float64          `json:"minScaleDenominator,omitempty"`
	MaxScaleDenominator                *float64          `json:"maxScaleDenominator,omitempty"`

	DataURL     *string                `json:"dataUrl,omitempty"`
	DataURLType *string                `json:"dataUrlType,omitempty"`
	MetadataURL *string                `json:"metadataUrl,omitempty"`
	LegendURL   *string                `json:"legendUrl,omitempty"`
	Rectangle   *extent.GeoBoundingBox `json:"rectangle,omitempty"`
	Intervals   *timedim.Sequence      `json:"intervals,omitempty"`
}

// Validate checks the parts of a definition an item cannot work without.
func (d Definition) Validate() error {
	if d.Type != "" && d.Type != "wms" {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidDefinition, d.Type)
	}
	if d.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidDefinition)
	}
	if d.Layers == "" {
		return fmt.Errorf("%w: layers is required", ErrInvalidDefinition)
	}
	if _, err := ParseTilingScheme(string(d.TilingScheme)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if err := positive("minScaleDenominator", d.MinScaleDenominator); err != nil {
		return err
	}
	return positive("maxScaleDenominator", d.MaxScaleDenominator)
}

func positive(name string, v *float64) error {
	if v != nil && !(*v > 0) {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidDefinition, name)
	}
	return nil
}

// FromDefinition restores an item.
func FromDefinition(d Definition, opts ...Option) (*Item, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	it := New(d.URL, d.Layers, opts...)
	it.Apply(d)
	return it, nil
}

// Definition saves the item. Derived values are never written.
func (it *Item) Definition() Definition {
	it.mu.RLock()
	defer it.mu.RUnlock()

	d := Definition{
		Type:                  it.profile.Type,
		Name:                  it.name,
		URL:                   it.url,
		Layers:                it.layers,
		Parameters:            maps.Clone(it.parameters),
		TilingScheme:          it.tilingScheme,
		GetFeatureInfoFormats: slices.Clone(it.featureInfoFormats),
		DataURL:               it.dataURL.RawPtr(),
		DataURLType:           it.dataURLType.RawPtr(),
		MetadataURL:           it.metadataURL.RawPtr(),
		LegendURL:             it.legendURL.RawPtr(),
		Rectangle:             it.rectangle.RawPtr(),
		Intervals:             it.intervals.RawPtr(),
	}
	if !it.populateIntervals {
		f := false
		d.PopulateIntervalsFromTimeDimension = &f
	}
	d.MinScaleDenominator = cloneFloat(it.minScale)
	d.MaxScaleDenominator = cloneFloat(it.maxScale)
	return d
}

// Apply replaces the item's configuration with d. Overrides absent from d
// are cleared. A change of URL, layers or metadata URL discards the current
// load.
func (it *Item) Apply(d Definition) {
	it.mu.Lock()
	defer it.mu.Unlock()

	prevMeta, prevOverridden := it.metadataURL.Raw()
	changed := d.URL != it.url || d.Layers != it.layers

	it.name = d.Name
	it.url = d.URL
	it.layers = d.Layers
	it.parameters = maps.Clone(d.Parameters)
	it.tilingScheme = WebMercator
	if d.TilingScheme != "" {
		it.tilingScheme = d.TilingScheme
	}
	it.featureInfoFormats = slices.Clone(d.GetFeatureInfoFormats)
	it.populateIntervals = d.PopulateIntervalsFromTimeDimension == nil || *d.PopulateIntervalsFromTimeDimension
	it.minScale = cloneFloat(d.MinScaleDenominator)
	it.maxScale = cloneFloat(d.MaxScaleDenominator)

	applyRaw(&it.dataURL, d.DataURL)
	applyRaw(&it.dataURLType, d.DataURLType)
	applyRaw(&it.metadataURL, d.MetadataURL)
	applyRaw(&it.legendURL, d.LegendURL)
	applyRaw(&it.rectangle, d.Rectangle)
	if d.Intervals != nil {
		it.intervals.Set(slices.Clone(*d.Intervals))
	} else {
		it.intervals.Unset()
	}

	newMeta, newOverridden := it.metadataURL.Raw()
	if changed || prevOverridden != newOverridden || prevMeta != newMeta {
		it.invalidateLocked()
	}
}

func applyRaw[T any](f *override.Field[T], v *T) {
	if v == nil {
		f.Unset()
		return
	}
	f.Set(*v)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
