// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package lrucache implements a per-key read-through cache where concurrent
// loads of the same key collapse into one call.
package lrucache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
)

var mon = monkit.Package()

// Options controls the details of the expiration policy.
type Options struct {
	// Expiration is how long an entry will be valid. It is not
	// affected by LRU or anything: after this duration, the object
	// is invalidated. A non-positive value means no expiration.
	Expiration time.Duration

	// Capacity is how many objects to keep in memory. A non-positive
	// value means the cache is unbounded and entries only leave it
	// through Delete or expiration.
	Capacity int

	// Name is used to differentiate cache in monkit stat.
	Name string
}

// cacheState contains all of the state for a cached entry.
type cacheState[K comparable, V any] struct {
	once   sync.Once
	when   time.Time
	order  *list.Element
	value  V
	err    error
	loaded bool
}

// Cache caches values for string or integer keys with an optional time
// based expiration and an optional LRU based eviction policy.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	opts  Options
	data  map[K]*cacheState[K, V]
	order *list.List
	now   func() time.Time
}

// New constructs a Cache with the given options.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	capacity := opts.Capacity
	if capacity < 0 {
		capacity = 0
	}
	return &Cache[K, V]{
		opts:  opts,
		data:  make(map[K]*cacheState[K, V], capacity),
		order: list.New(),
		now:   time.Now,
	}
}

// Get returns the value for some key if it exists and is valid. If not
// it will call the provided function. Only one call of fn runs for a key
// at a time and concurrent callers for that key receive its result, error
// included; callers for other keys are not blocked. If the function returns
// an error, it is not cached and further calls will try again.
func (cache *Cache[K, V]) Get(ctx context.Context, key K, fn func() (V, error)) (value V, err error) {
	for {
		cache.mu.Lock()

		state, ok := cache.data[key]
		switch {
		case !ok:
			cache.evict()
			state = &cacheState[K, V]{
				when:  cache.now(),
				order: cache.order.PushFront(key),
			}
			cache.data[key] = state

		case cache.expired(state):
			delete(cache.data, key)
			cache.order.Remove(state.order)
			cache.mu.Unlock()
			continue

		default:
			cache.order.MoveToFront(state.order)
		}

		cache.mu.Unlock()

		called := false
		state.once.Do(func() {
			called = true
			value, err = fn()

			if err == nil {
				cache.mu.Lock()
				state.value = value
				state.loaded = true
				cache.mu.Unlock()
			} else {
				// waiters share the failure, later calls start a new load.
				state.err = err
				cache.mu.Lock()
				if cache.data[key] == state {
					delete(cache.data, key)
					cache.order.Remove(state.order)
				}
				cache.mu.Unlock()
			}
		})

		if called {
			cache.monitorCache(false)
			return value, err
		}
		cache.monitorCache(true)
		return state.value, state.err
	}
}

func (cache *Cache[K, V]) monitorCache(valueFromCache bool) {
	if cache.opts.Name == "" {
		return
	}

	nameTag := monkit.NewSeriesTag("name", cache.opts.Name)
	if valueFromCache {
		mon.Event("cache_hit", nameTag)
	} else {
		mon.Event("cache_miss", nameTag)
	}
}

// Delete explicitly removes a key from the cache if it exists. A load that is
// in flight for the key still completes for its waiters but is not kept.
func (cache *Cache[K, V]) Delete(ctx context.Context, key K) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	state, ok := cache.data[key]
	if !ok {
		return
	}
	delete(cache.data, key)
	cache.order.Remove(state.order)
}

// Add adds a value to the cache.
//
// replaced is true if the key already existed in the cache and was valid, hence
// the value is replaced.
func (cache *Cache[K, V]) Add(ctx context.Context, key K, value V) (replaced bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	state := &cacheState[K, V]{
		when:   cache.now(),
		value:  value,
		loaded: true,
	}
	// the entry must not be loaded by a later Get.
	state.once.Do(func() {})

	old := cache.peek(key)
	if old != nil {
		cache.order.Remove(old.order)
	} else {
		cache.evict()
	}

	state.order = cache.order.PushFront(key)
	cache.data[key] = state

	return old != nil
}

// GetCached returns the value associated with key and true if it exists, is
// loaded and hasn't expired, otherwise the zero value and false.
func (cache *Cache[K, V]) GetCached(ctx context.Context, key K) (value V, cached bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	state := cache.peek(key)
	if state == nil || !state.loaded {
		return value, false
	}

	cache.order.MoveToFront(state.order)
	return state.value, true
}

// Len returns the number of entries, including the ones being loaded.
func (cache *Cache[K, V]) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.data)
}

// peek returns the state associated to the key if exists and it's valid,
// otherwise nil. Expired entries are removed.
//
// peek doesn't update the key as being recently used.
//
// NOTE the caller must always lock and unlock the mutex before calling this
// method.
func (cache *Cache[K, V]) peek(key K) *cacheState[K, V] {
	state, ok := cache.data[key]
	if !ok {
		return nil
	}

	if cache.expired(state) {
		cache.order.Remove(state.order)
		delete(cache.data, key)
		return nil
	}

	return state
}

// evict drops least recently used entries until one more fits. Entries whose
// load is in flight are skipped so that their load stays the only one for the
// key; the cache exceeds its capacity while every entry is loading.
//
// NOTE the caller must hold the mutex.
func (cache *Cache[K, V]) evict() {
	if cache.opts.Capacity <= 0 {
		return
	}
	for e := cache.order.Back(); e != nil && len(cache.data) >= cache.opts.Capacity; {
		prev := e.Prev()
		key := e.Value.(K)
		if cache.data[key].loaded {
			delete(cache.data, key)
			cache.order.Remove(e)
		}
		e = prev
	}
}

func (cache *Cache[K, V]) expired(state *cacheState[K, V]) bool {
	return cache.opts.Expiration > 0 && cache.now().Sub(state.when) > cache.opts.Expiration
}
