// Package catalog resolves a WMS catalog item, a service URL plus a layer
// list, into derived locators, extent, time intervals and a metadata tree.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/timedim"
	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog/override"
	"github.com/mohammed-shakir/wms-catalog/internal/core/fetcher"
	"github.com/mohammed-shakir/wms-catalog/internal/core/observability"
	"github.com/mohammed-shakir/wms-catalog/internal/core/ogc"
	"github.com/mohammed-shakir/wms-catalog/internal/corsproxy"
	"github.com/mohammed-shakir/wms-catalog/internal/logger"
)

const (
	DataURLTypeWFS = "wfs"

	// above this the server hides data when zoomed out (ArcGIS minScale)
	hidingScaleDenominator = 1e6
)

var errNoFetcher = errors.New("catalog: no fetcher configured")

// Observer is told about every completed load that is still current for its
// item.
type Observer func(ctx context.Context, it *Item, m *Metadata)

type Option func(*Item)

func WithFetcher(f fetcher.Fetcher) Option { return func(it *Item) { it.fetcher = f } }

func WithProxy(p corsproxy.Proxy) Option { return func(it *Item) { it.proxy = p } }

func WithLogger(l *slog.Logger) Option {
	return func(it *Item) {
		if l != nil {
			it.logger = l
		}
	}
}

func WithProfile(p Profile) Option { return func(it *Item) { it.profile = p } }

func WithObserver(o Observer) Option { return func(it *Item) { it.observer = o } }

// WithFetchTimeout bounds each capabilities fetch. Zero means no bound
// beyond the fetcher's own.
func WithFetchTimeout(d time.Duration) Option { return func(it *Item) { it.fetchTimeout = d } }

// Item is a WMS catalog item. Every derived property is read through an
// override field: an explicit value wins, then the derivation, then a
// default. It is safe for concurrent use.
type Item struct {
	profile      Profile
	fetcher      fetcher.Fetcher
	proxy        corsproxy.Proxy
	logger       *slog.Logger
	observer     Observer
	fetchTimeout time.Duration

	mu sync.RWMutex

	name               string
	url                string
	layers             string
	populateIntervals  bool
	parameters         map[string]string
	tilingScheme       TilingScheme
	featureInfoFormats []string
	minScale           *float64
	maxScale           *float64

	dataURL     override.Field[string]
	dataURLType override.Field[string]
	metadataURL override.Field[string]
	legendURL   override.Field[string]
	rectangle   override.Field[extent.GeoBoundingBox]
	intervals   override.Field[timedim.Sequence]

	// from the last load applied to this item
	rectFromMetadata      *extent.GeoBoundingBox
	intervalsFromMetadata timedim.Sequence

	current *Metadata
}

// New returns an item for the service at url showing the comma-separated
// layers.
func New(url, layerList string, opts ...Option) *Item {
	it := &Item{
		profile:           WMS(""),
		logger:            slog.New(slog.DiscardHandler),
		url:               url,
		layers:            layerList,
		populateIntervals: true,
		tilingScheme:      WebMercator,
	}
	for _, o := range opts {
		o(it)
	}

	it.dataURLType = override.New[string](nil, DataURLTypeWFS)
	it.dataURL = override.New(func() (string, bool) {
		if it.url == "" || it.dataURLType.Get() != DataURLTypeWFS {
			return "", false
		}
		return ogc.FeatureQueryURL(it.url, it.layers), true
	}, "")
	it.metadataURL = override.New(func() (string, bool) {
		if it.url == "" {
			return "", false
		}
		return ogc.CapabilitiesURL(it.url, it.profile.Protocol, it.profile.Version), true
	}, "")
	it.legendURL = override.New(func() (string, bool) {
		if it.url == "" {
			return "", false
		}
		return ogc.LegendURL(it.url, it.layers), true
	}, "")
	it.rectangle = override.New(func() (extent.GeoBoundingBox, bool) {
		if it.rectFromMetadata == nil {
			return extent.GeoBoundingBox{}, false
		}
		return *it.rectFromMetadata, true
	}, extent.World)
	it.intervals = override.New(func() (timedim.Sequence, bool) {
		return it.intervalsFromMetadata, it.intervalsFromMetadata != nil
	}, nil)
	return it
}

func (it *Item) Type() string            { return it.profile.Type }
func (it *Item) TypeName() string        { return it.profile.TypeName }
func (it *Item) Profile() Profile        { return it.profile }
func (it *Item) SupportsIntervals() bool { return true }

func (it *Item) Name() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.name
}

func (it *Item) SetName(name string) {
	it.mu.Lock()
	it.name = name
	it.mu.Unlock()
}

func (it *Item) URL() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.url
}

// SetURL points the item at another service and discards the current load.
func (it *Item) SetURL(url string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if url == it.url {
		return
	}
	it.url = url
	it.invalidateLocked()
}

func (it *Item) Layers() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.layers
}

// SetLayers changes the requested layers and discards the current load.
func (it *Item) SetLayers(layerList string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if layerList == it.layers {
		return
	}
	it.layers = layerList
	it.invalidateLocked()
}

// The next Metadata call starts a fresh load; a load still in flight for the
// discarded metadata is ignored when it completes.
func (it *Item) invalidateLocked() {
	it.current = nil
	it.rectFromMetadata = nil
	it.intervalsFromMetadata = nil
}

// Metadata returns the current load cycle, starting one on first use. All
// callers get the same object until the item is reloaded or its source
// changes.
func (it *Item) Metadata() *Metadata {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.current != nil {
		return it.current
	}
	return it.startLocked(context.Background())
}

// Load starts a new load cycle unconditionally. Values carried by ctx are
// kept for logging but its cancellation is not: a superseded load runs to
// completion and is then ignored.
func (it *Item) Load(ctx context.Context) *Metadata {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.startLocked(ctx)
}

// State of the current load cycle.
func (it *Item) State() State {
	it.mu.RLock()
	m := it.current
	it.mu.RUnlock()
	if m == nil {
		return Uninitialized
	}
	return m.State()
}

type loadRequest struct {
	url       string
	layers    string
	populate  bool
	fetchURL  string
	startedAt time.Time
}

func (it *Item) startLocked(ctx context.Context) *Metadata {
	m := newMetadata()
	it.current = m
	req := loadRequest{
		url:       it.url,
		layers:    it.layers,
		populate:  it.populateIntervals,
		fetchURL:  corsproxy.Apply(it.proxy, it.metadataURL.Get()),
		startedAt: m.started,
	}
	ctx = logger.WithLoadID(context.WithoutCancel(ctx), m.ID)
	go it.run(ctx, m, req)
	return m
}

func (it *Item) run(ctx context.Context, m *Metadata, req loadRequest) {
	log := it.logger.With("load_id", m.ID, "url", req.url, "layers", req.layers)
	log.Debug("capabilities load started", "fetch_url", req.fetchURL)

	res, err := it.fetchAndResolve(ctx, req)

	it.mu.Lock()
	stale := it.current != m
	if !stale {
		// every load replaces what the previous one derived, a failure included
		it.rectFromMetadata = res.Rectangle
		it.intervalsFromMetadata = nil
		if req.populate {
			it.intervalsFromMetadata = res.Intervals
		}
	}
	it.mu.Unlock()

	m.finish(res, err)
	outcome := m.State().String()
	observability.ObserveCapabilitiesLoad(outcome, time.Since(req.startedAt).Seconds())

	switch {
	case err != nil:
		log.Warn("capabilities load failed", "err", err, "stale", stale)
	default:
		if res.ServiceErr != nil {
			observability.IncCapabilitiesIssue("service_missing")
			log.Warn("service block missing from capabilities")
		}
		if res.DataSourceErr != nil {
			observability.IncCapabilitiesIssue("layer_not_found")
			log.Warn("requested layers not found", "err", res.DataSourceErr)
		}
		if res.RectangleErr != nil {
			observability.IncCapabilitiesIssue("malformed_extent")
			log.Warn("layer extent ignored", "err", res.RectangleErr)
		}
		if res.IntervalsErr != nil {
			observability.IncCapabilitiesIssue("malformed_time")
			log.Warn("time dimension ignored", "err", res.IntervalsErr)
		}
		log.Info("capabilities load finished", "state", outcome, "stale", stale,
			"intervals", len(res.Intervals), "duration", m.Duration().String())
	}

	if !stale && it.observer != nil {
		it.observer(ctx, it, m)
	}
}

func (it *Item) fetchAndResolve(ctx context.Context, req loadRequest) (Resolution, error) {
	if it.fetcher == nil {
		return Resolution{}, errNoFetcher
	}
	if it.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, it.fetchTimeout)
		defer cancel()
	}
	raw, err := it.fetcher.FetchDocument(ctx, req.fetchURL)
	if err != nil {
		return Resolution{}, err
	}
	doc, err := tree.Parse(raw)
	if err != nil {
		return Resolution{}, err
	}
	return Resolve(doc, req.layers, req.populate), nil
}

// DataURL is the feature query locator for the layers.
func (it *Item) DataURL() string { return get(it, &it.dataURL) }

// DataURLType says how DataURL is derived; only "wfs" derives one.
func (it *Item) DataURLType() string { return get(it, &it.dataURLType) }

// MetadataURL is the capabilities request that loads fetch.
func (it *Item) MetadataURL() string { return get(it, &it.metadataURL) }

func (it *Item) LegendURL() string { return get(it, &it.legendURL) }

// Rectangle is the explicit box, else the merged extent of the layers, else
// the whole world.
func (it *Item) Rectangle() extent.GeoBoundingBox { return get(it, &it.rectangle) }

// RectangleSource is Rectangle plus where the value came from.
func (it *Item) RectangleSource() (extent.GeoBoundingBox, override.Source) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.rectangle.Resolve()
}

// Intervals is nil when the item is not time-varying.
func (it *Item) Intervals() timedim.Sequence {
	return slices.Clone(get(it, &it.intervals))
}

func (it *Item) SetDataURL(v string)     { set(it, &it.dataURL, v) }
func (it *Item) SetDataURLType(v string) { set(it, &it.dataURLType, v) }
func (it *Item) SetLegendURL(v string)   { set(it, &it.legendURL, v) }
func (it *Item) SetRectangle(v extent.GeoBoundingBox) {
	set(it, &it.rectangle, v)
}
func (it *Item) SetIntervals(v timedim.Sequence) {
	set(it, &it.intervals, slices.Clone(v))
}

func (it *Item) ClearDataURL()     { unset(it, &it.dataURL) }
func (it *Item) ClearDataURLType() { unset(it, &it.dataURLType) }
func (it *Item) ClearLegendURL()   { unset(it, &it.legendURL) }
func (it *Item) ClearRectangle()   { unset(it, &it.rectangle) }
func (it *Item) ClearIntervals()   { unset(it, &it.intervals) }

// SetMetadataURL changes where capabilities are read from, which discards
// the current load.
func (it *Item) SetMetadataURL(v string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if cur, ok := it.metadataURL.Raw(); ok && cur == v {
		return
	}
	it.metadataURL.Set(v)
	it.invalidateLocked()
}

func (it *Item) ClearMetadataURL() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if !it.metadataURL.IsOverridden() {
		return
	}
	it.metadataURL.Unset()
	it.invalidateLocked()
}

func get[T any](it *Item, f *override.Field[T]) T {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return f.Get()
}

func set[T any](it *Item, f *override.Field[T], v T) {
	it.mu.Lock()
	f.Set(v)
	it.mu.Unlock()
}

func unset[T any](it *Item, f *override.Field[T]) {
	it.mu.Lock()
	f.Unset()
	it.mu.Unlock()
}

func (it *Item) PopulateIntervalsFromTimeDimension() bool {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.populateIntervals
}

// SetPopulateIntervalsFromTimeDimension takes effect from the next load.
func (it *Item) SetPopulateIntervalsFromTimeDimension(v bool) {
	it.mu.Lock()
	it.populateIntervals = v
	it.mu.Unlock()
}

// Parameters returns a copy of the user request parameters.
func (it *Item) Parameters() map[string]string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return maps.Clone(it.parameters)
}

func (it *Item) SetParameters(p map[string]string) {
	it.mu.Lock()
	it.parameters = maps.Clone(p)
	it.mu.Unlock()
}

func (it *Item) TilingScheme() TilingScheme {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.tilingScheme
}

func (it *Item) SetTilingScheme(s TilingScheme) {
	it.mu.Lock()
	it.tilingScheme = s
	it.mu.Unlock()
}

func (it *Item) GetFeatureInfoFormats() []string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return slices.Clone(it.featureInfoFormats)
}

func (it *Item) SetGetFeatureInfoFormats(f []string) {
	it.mu.Lock()
	it.featureInfoFormats = slices.Clone(f)
	it.mu.Unlock()
}

func (it *Item) MinScaleDenominator() (float64, bool) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return deref(it.minScale)
}

func (it *Item) SetMinScaleDenominator(v float64) {
	it.mu.Lock()
	it.minScale = &v
	it.mu.Unlock()
}

func (it *Item) MaxScaleDenominator() (float64, bool) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return deref(it.maxScale)
}

func (it *Item) SetMaxScaleDenominator(v float64) {
	it.mu.Lock()
	it.maxScale = &v
	it.mu.Unlock()
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// MaximumLevel is the deepest tile level worth requesting, known only when
// a usable minimum scale denominator is set.
func (it *Item) MaximumLevel() (int, bool) {
	d, ok := it.MinScaleDenominator()
	if !ok {
		return 0, false
	}
	return ogc.MaximumLevel(d)
}
