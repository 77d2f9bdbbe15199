// Package registry holds the live catalog items of the service, keeps them
// persisted and spatially indexed, and restores them on demand.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog/override"
	"github.com/mohammed-shakir/wms-catalog/internal/core/observability"
	"github.com/mohammed-shakir/wms-catalog/internal/core/ogc"
	"github.com/mohammed-shakir/wms-catalog/internal/index"
	"github.com/mohammed-shakir/wms-catalog/internal/keys"
)

var (
	ErrNotFound  = errors.New("registry: item not found")
	ErrInvalidID = errors.New("registry: invalid item id")
)

// Store persists item definitions. redisstore.ItemStore implements it.
type Store interface {
	Save(ctx context.Context, id string, def catalog.Definition) error
	Load(ctx context.Context, id string) (catalog.Definition, bool, error)
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) (map[string]catalog.Definition, error)
}

// LoadHook runs after every completed, current load of a registered item.
type LoadHook func(ctx context.Context, id string, it *catalog.Item, m *catalog.Metadata)

type Option func(*Registry)

func WithStore(s Store) Option { return func(r *Registry) { r.store = s } }

func WithIndex(x *index.Index) Option { return func(r *Registry) { r.index = x } }

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithItemOptions are applied to every item the registry creates.
func WithItemOptions(opts ...catalog.Option) Option {
	return func(r *Registry) { r.itemOpts = append(r.itemOpts, opts...) }
}

func WithLoadHook(h LoadHook) Option { return func(r *Registry) { r.hooks = append(r.hooks, h) } }

type Registry struct {
	store    Store
	index    *index.Index
	logger   *slog.Logger
	itemOpts []catalog.Option
	hooks    []LoadHook

	// serializes create/replace so two Puts of one id never build two items
	mu    sync.Mutex
	items *lru.Cache[string, *catalog.Item]
}

// New returns a registry keeping at most size items in memory. Items pushed
// out stay in the store and come back on the next Get.
func New(size int, opts ...Option) (*Registry, error) {
	if size <= 0 {
		size = 1024
	}
	r := &Registry{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(r)
	}
	if r.index == nil {
		r.index = index.New()
	}
	items, err := lru.NewWithEvict(size, func(id string, _ *catalog.Item) {
		r.index.Remove(id)
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r.items = items
	return r, nil
}

// Put creates or replaces the item id from def, saves it and starts its
// load when the definition changed what it loads.
func (r *Registry) Put(ctx context.Context, id string, def catalog.Definition) (*catalog.Item, error) {
	if !keys.ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if r.store != nil {
		if err := r.store.Save(ctx, id, def); err != nil {
			return nil, fmt.Errorf("save item %q: %w", id, err)
		}
	}

	r.mu.Lock()
	it, ok := r.items.Get(id)
	if ok {
		it.Apply(def)
	} else {
		var err error
		it, err = catalog.FromDefinition(def, r.optionsFor(id)...)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.items.Add(id, it)
	}
	r.reindex(id, it)
	r.mu.Unlock()

	it.Metadata()
	observability.SetRegistryItems(r.items.Len())
	r.logger.Info("item stored", "item_id", id, "url", def.URL, "layers", def.Layers, "replaced", ok)
	return it, nil
}

// Add stores def under the id derived from its URL and layers.
func (r *Registry) Add(ctx context.Context, def catalog.Definition) (string, *catalog.Item, error) {
	id := keys.ItemID(def.URL, def.Layers)
	it, err := r.Put(ctx, id, def)
	return id, it, err
}

// Get returns the live item, restoring it from the store on a miss.
func (r *Registry) Get(ctx context.Context, id string) (*catalog.Item, error) {
	if it, ok := r.items.Get(id); ok {
		return it, nil
	}
	if r.store == nil {
		return nil, ErrNotFound
	}
	def, ok, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load item %q: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return r.restore(id, def)
}

func (r *Registry) restore(id string, def catalog.Definition) (*catalog.Item, error) {
	r.mu.Lock()
	if it, ok := r.items.Get(id); ok {
		r.mu.Unlock()
		return it, nil
	}
	it, err := catalog.FromDefinition(def, r.optionsFor(id)...)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("restore item %q: %w", id, err)
	}
	r.items.Add(id, it)
	r.reindex(id, it)
	r.mu.Unlock()

	it.Metadata()
	observability.SetRegistryItems(r.items.Len())
	return it, nil
}

// Delete removes the item from memory, the index and the store.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	present := r.items.Remove(id)
	r.index.Remove(id)
	r.mu.Unlock()
	observability.SetRegistryItems(r.items.Len())

	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete item %q: %w", id, err)
		}
		return nil
	}
	if !present {
		return ErrNotFound
	}
	return nil
}

// Reload starts a new load cycle for id.
func (r *Registry) Reload(ctx context.Context, id string) (*catalog.Metadata, error) {
	it, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return it.Load(ctx), nil
}

// ReloadURL starts a new load for every live item whose service URL matches
// rawURL once query strings are dropped, and returns how many it reloaded.
func (r *Registry) ReloadURL(ctx context.Context, rawURL string) int {
	want := ogc.CleanURL(rawURL)
	n := 0
	for _, id := range r.items.Keys() {
		it, ok := r.items.Peek(id)
		if !ok || ogc.CleanURL(it.URL()) != want {
			continue
		}
		it.Load(ctx)
		n++
	}
	return n
}

// Search returns the ids of live items whose rectangle intersects box.
// Items still on the world default are not indexed.
func (r *Registry) Search(box extent.GeoBoundingBox) ([]string, error) {
	return r.index.Search(box)
}

// Restore brings every stored item back into memory, up to the registry
// size. Undecodable entries are logged and skipped.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	defs, err := r.store.LoadAll(ctx)
	if err != nil && defs == nil {
		return 0, fmt.Errorf("restore items: %w", err)
	}
	if err != nil {
		r.logger.Warn("some stored items could not be decoded", "err", err)
	}
	n := 0
	for id, def := range defs {
		if _, err := r.restore(id, def); err != nil {
			r.logger.Warn("stored item skipped", "item_id", id, "err", err)
			continue
		}
		n++
	}
	r.logger.Info("items restored", "count", n)
	return n, nil
}

func (r *Registry) Len() int { return r.items.Len() }

func (r *Registry) optionsFor(id string) []catalog.Option {
	opts := make([]catalog.Option, 0, len(r.itemOpts)+1)
	opts = append(opts, r.itemOpts...)
	return append(opts, catalog.WithObserver(r.observer(id)))
}

func (r *Registry) observer(id string) catalog.Observer {
	return func(ctx context.Context, it *catalog.Item, m *catalog.Metadata) {
		// a deleted or replaced item may still finish a load; checked and
		// indexed under mu so a concurrent Delete cannot land in between
		r.mu.Lock()
		if cur, ok := r.items.Peek(id); !ok || cur != it {
			r.mu.Unlock()
			return
		}
		r.reindex(id, it)
		r.mu.Unlock()
		for _, h := range r.hooks {
			h(ctx, id, it, m)
		}
	}
}

func (r *Registry) reindex(id string, it *catalog.Item) {
	box, src := it.RectangleSource()
	if src == override.Default {
		r.index.Remove(id)
		return
	}
	if err := r.index.Upsert(id, box); err != nil {
		r.index.Remove(id)
		r.logger.Warn("rectangle not indexed", "item_id", id, "rectangle", box.String(), "err", err)
	}
}
