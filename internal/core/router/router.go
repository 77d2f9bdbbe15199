// Package router holds the HTTP handlers of the catalog API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/extent"
	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/mapper"
	h3mapper "github.com/mohammed-shakir/wms-catalog/internal/mapper/h3"
	"github.com/mohammed-shakir/wms-catalog/internal/registry"
)

const maxBodyBytes = 1 << 20

// Items is the registry as the handlers see it.
type Items interface {
	Put(ctx context.Context, id string, def catalog.Definition) (*catalog.Item, error)
	Add(ctx context.Context, def catalog.Definition) (string, *catalog.Item, error)
	Get(ctx context.Context, id string) (*catalog.Item, error)
	Delete(ctx context.Context, id string) error
	Reload(ctx context.Context, id string) (*catalog.Metadata, error)
	Search(box extent.GeoBoundingBox) ([]string, error)
}

type Options struct {
	H3Res    int
	H3ResMax int
	// MaxWait bounds ?wait=true requests.
	MaxWait time.Duration
}

type API struct {
	log    *slog.Logger
	items  Items
	mapper mapper.Interface
	opts   Options
}

func New(log *slog.Logger, items Items, m mapper.Interface, opts Options) *API {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 30 * time.Second
	}
	if opts.H3ResMax <= 0 {
		opts.H3ResMax = 6
	}
	return &API{log: log, items: items, mapper: m, opts: opts}
}

// Routes registers the catalog endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Post("/items", a.addItem)
	r.Route("/items/{id}", func(r chi.Router) {
		r.Put("/", a.putItem)
		r.Get("/", a.getItem)
		r.Delete("/", a.deleteItem)
		r.Get("/resolved", a.resolved)
		r.Get("/metadata", a.metadata)
		r.Get("/imagery", a.imagery)
		r.Get("/cells", a.cells)
		r.Post("/reload", a.reload)
	})
	r.Get("/search", a.search)
}

func (a *API) addItem(w http.ResponseWriter, r *http.Request) {
	def, ok := a.decodeDefinition(w, r)
	if !ok {
		return
	}
	id, it, err := a.items.Add(r.Context(), def)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/items/"+id)
	writeJSON(w, http.StatusCreated, itemResponse{ID: id, State: it.State()})
}

func (a *API) putItem(w http.ResponseWriter, r *http.Request) {
	def, ok := a.decodeDefinition(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	it, err := a.items.Put(r.Context(), id, def)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{ID: id, State: it.State()})
}

type itemResponse struct {
	ID    string        `json:"id"`
	State catalog.State `json:"state"`
}

func (a *API) getItem(w http.ResponseWriter, r *http.Request) {
	it, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, it.Definition())
}

func (a *API) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := a.items.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) resolved(w http.ResponseWriter, r *http.Request) {
	it, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if !a.maybeWait(w, r, it.Metadata()) {
		return
	}
	writeJSON(w, http.StatusOK, it.Resolved())
}

func (a *API) metadata(w http.ResponseWriter, r *http.Request) {
	it, ok := a.lookup(w, r)
	if !ok {
		return
	}
	m := it.Metadata()
	if !a.maybeWait(w, r, m) {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) imagery(w http.ResponseWriter, r *http.Request) {
	it, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, it.ImageryRequest(strings.TrimSpace(r.URL.Query().Get("time"))))
}

func (a *API) reload(w http.ResponseWriter, r *http.Request) {
	m, err := a.items.Reload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"loadId": m.ID, "state": m.State()})
}

type cellsResponse struct {
	Res       int                   `json:"res"`
	Rectangle extent.GeoBoundingBox `json:"rectangle"`
	Source    string                `json:"source"`
	Count     int                   `json:"count"`
	Cells     []string              `json:"cells"`
}

func (a *API) cells(w http.ResponseWriter, r *http.Request) {
	res := a.opts.H3Res
	if raw := strings.TrimSpace(r.URL.Query().Get("res")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > a.opts.H3ResMax {
			http.Error(w, fmt.Sprintf("res must be an integer in [0,%d]", a.opts.H3ResMax), http.StatusBadRequest)
			return
		}
		res = n
	}
	it, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if !a.maybeWait(w, r, it.Metadata()) {
		return
	}

	box, src := it.RectangleSource()
	cells, err := a.mapper.CellsForBox(box, res)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cellsResponse{
		Res: res, Rectangle: box, Source: src.String(), Count: len(cells), Cells: cells,
	})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	box, err := parseBBOX(r.URL.Query().Get("bbox"))
	if err != nil {
		http.Error(w, "invalid bbox: "+err.Error(), http.StatusBadRequest)
		return
	}
	ids, err := a.items.Search(box)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bbox": box, "ids": ids})
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*catalog.Item, bool) {
	it, err := a.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return nil, false
	}
	return it, true
}

// maybeWait blocks on m when the request asks for ?wait=true. It writes the
// response itself and returns false when the wait was cut short.
func (a *API) maybeWait(w http.ResponseWriter, r *http.Request, m *catalog.Metadata) bool {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		return true
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.opts.MaxWait)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		http.Error(w, "capabilities still loading", http.StatusGatewayTimeout)
		return false
	}
	return true
}

func (a *API) decodeDefinition(w http.ResponseWriter, r *http.Request) (catalog.Definition, bool) {
	var def catalog.Definition
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		http.Error(w, "invalid item definition: "+err.Error(), http.StatusBadRequest)
		return def, false
	}
	return def, true
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidID),
		errors.Is(err, catalog.ErrInvalidDefinition),
		errors.Is(err, h3mapper.ErrInvalidBox):
		code = http.StatusBadRequest
	case errors.Is(err, h3mapper.ErrTooManyCells):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// parseBBOX reads west,south,east,north with an optional trailing
// EPSG:4326.
func parseBBOX(raw string) (extent.GeoBoundingBox, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return extent.GeoBoundingBox{}, errors.New("missing required parameter: bbox")
	}
	if i := strings.LastIndex(raw, ","); i >= 0 {
		if srs := strings.ToUpper(strings.TrimSpace(raw[i+1:])); strings.HasPrefix(srs, "EPSG:") {
			if srs != "EPSG:4326" {
				return extent.GeoBoundingBox{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srs)
			}
			raw = raw[:i]
		}
	}
	box, err := extent.Parse(raw)
	if err != nil {
		return extent.GeoBoundingBox{}, err
	}
	if box.West < -180 || box.East > 180 || box.South < -90 || box.North > 90 {
		return extent.GeoBoundingBox{}, errors.New("coordinates out of range")
	}
	if box.West > box.East || box.South > box.North {
		return extent.GeoBoundingBox{}, errors.New("coordinates must satisfy east>=west and north>=south")
	}
	return box, nil
}
