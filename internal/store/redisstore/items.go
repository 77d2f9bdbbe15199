package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
	"github.com/mohammed-shakir/wms-catalog/internal/keys"
)

const DefaultPrefix = "catalog:item:"

// ItemStore saves item definitions as JSON, one key per item id.
type ItemStore struct {
	c      *Client
	prefix string
}

func NewItemStore(c *Client, prefix string) *ItemStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ItemStore{c: c, prefix: prefix}
}

func (s *ItemStore) Save(ctx context.Context, id string, def catalog.Definition) error {
	b, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode item %q: %w", id, err)
	}
	return s.c.Set(ctx, keys.StoreKey(s.prefix, id), b, 0)
}

func (s *ItemStore) Load(ctx context.Context, id string) (catalog.Definition, bool, error) {
	b, ok, err := s.c.Get(ctx, keys.StoreKey(s.prefix, id))
	if err != nil || !ok {
		return catalog.Definition{}, false, err
	}
	var def catalog.Definition
	if err := json.Unmarshal(b, &def); err != nil {
		return catalog.Definition{}, false, fmt.Errorf("decode item %q: %w", id, err)
	}
	return def, true, nil
}

func (s *ItemStore) Delete(ctx context.Context, id string) error {
	return s.c.Del(ctx, keys.StoreKey(s.prefix, id))
}

// LoadAll returns every saved definition keyed by item id. Entries that fail
// to decode are reported in the error but do not hide the others.
func (s *ItemStore) LoadAll(ctx context.Context) (map[string]catalog.Definition, error) {
	ks, err := s.c.Scan(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	vals, err := s.c.MGet(ctx, ks)
	if err != nil {
		return nil, err
	}
	out := make(map[string]catalog.Definition, len(vals))
	var bad []string
	for k, b := range vals {
		id := strings.TrimPrefix(k, s.prefix)
		var def catalog.Definition
		if err := json.Unmarshal(b, &def); err != nil {
			bad = append(bad, id)
			continue
		}
		out[id] = def
	}
	if len(bad) > 0 {
		return out, fmt.Errorf("undecodable items: %s", strings.Join(bad, ", "))
	}
	return out, nil
}

func (s *ItemStore) Ping(ctx context.Context) error { return s.c.Ping(ctx) }
