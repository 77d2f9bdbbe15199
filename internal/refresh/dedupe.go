package refresh

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, time.Time](size)
	return &tsDedupe{lru: c}
}

// returns true if ts is later than the last one applied for key
func (d *tsDedupe) shouldApply(key string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return false
	}
	d.lru.Add(key, ts)
	return true
}
