package chain

import (
	"time"

	"ResumeAI/pkg/cache"
)

// Registry maps conversation ids to live handles. Handles idle longer
// than ttl expire and the least recently used one is evicted once
// maxItems is reached; either way the conversation survives in the
// store. Callers hold Lock(id) around any get/put/drop of that id.
type Registry struct {
	cache *cache.Cache
	ttl   time.Duration
	locks keyedMutex
}

func NewRegistry(maxItems int, ttl time.Duration) *Registry {
	sweep := ttl / 4
	if sweep <= 0 || sweep > time.Minute {
		sweep = time.Minute
	}
	return &Registry{cache: cache.New(maxItems, sweep), ttl: ttl}
}

// Lock serializes all work on one conversation id.
func (r *Registry) Lock(id string) (unlock func()) {
	return r.locks.Lock(id)
}

func (r *Registry) get(id string) (*Handle, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	h, ok := v.(*Handle)
	return h, ok
}

// put stores h and restarts its idle timer.
func (r *Registry) put(h *Handle) {
	r.cache.Set(h.ID, h, r.ttl)
}

func (r *Registry) drop(id string) {
	r.cache.Delete(id)
}

// Len reports live handles.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) Close() {
	r.cache.Close()
}
