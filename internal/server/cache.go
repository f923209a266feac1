package server

import (
	"sync"

	"xg27station/internal/sensor"
)

// Cache holds the most recent decoded reading so late-joining clients
// get a frame immediately instead of waiting for the next broadcast.
type Cache struct {
	mu      sync.RWMutex
	reading sensor.Reading
	set     bool
}

func NewCache() *Cache {
	return &Cache{}
}

func (cache *Cache) Set(reading sensor.Reading) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.reading = reading
	cache.set = true
}

func (cache *Cache) Get() (sensor.Reading, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return cache.reading, cache.set
}
