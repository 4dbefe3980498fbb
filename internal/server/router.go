package server

import (
	"errors"
	"fmt"

	"github.com/leonardcser/kvd/internal/cache"
	"github.com/leonardcser/kvd/internal/protocol"
	"github.com/leonardcser/kvd/internal/store"
)

// Router validates requests and executes them against the cache and the
// store. Every operation holds the key's cache-set lock across both, so
// requests for the same key are applied in the order they win that lock.
type Router struct {
	cache *cache.Cache
	store store.Store
}

// NewRouter builds a Router over c and st.
func NewRouter(c *cache.Cache, st store.Store) *Router {
	return &Router{cache: c, store: st}
}

// Handle executes one decoded message and returns the response to send.
// Failures become status responses; Handle never panics on bad input.
func (r *Router) Handle(m protocol.Message) protocol.Message {
	switch m.Type {
	case protocol.GetRequest:
		v, err := r.Get(m.Key)
		if err != nil {
			return protocol.ErrorResponse(err)
		}
		return protocol.NewValueResponse(m.Key, v)
	case protocol.PutRequest:
		if _, err := r.Put(m.Key, m.Value); err != nil {
			return protocol.ErrorResponse(err)
		}
		return protocol.NewStatusResponse(protocol.Success)
	case protocol.DelRequest:
		if err := r.Delete(m.Key); err != nil {
			return protocol.ErrorResponse(err)
		}
		return protocol.NewStatusResponse(protocol.Success)
	case protocol.Response:
		return protocol.ErrorResponse(protocol.ErrFormat)
	default:
		return protocol.ErrorResponse(protocol.ErrUnrecognizedType)
	}
}

// Get returns the value for key, reading through the cache. A store hit is
// installed in the cache.
func (r *Router) Get(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	mu := r.cache.Lock(key)
	mu.Lock()
	defer mu.Unlock()

	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}
	v, err := r.store.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return "", protocol.ErrKeyNotFound
	}
	if err != nil {
		return "", protocol.StoreIOError(fmt.Errorf("get %q: %w", key, err))
	}
	r.cache.Put(key, v)
	return v, nil
}

// Put writes value through the cache to the store and reports whether the
// key already existed in the store. If the store write fails the key is
// dropped from the cache so later reads go back to the store.
func (r *Router) Put(key, value string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	if len(value) > protocol.MaxValueSize {
		return false, protocol.ErrOversizedValue
	}
	mu := r.cache.Lock(key)
	mu.Lock()
	defer mu.Unlock()

	r.cache.Put(key, value)
	existed, err := r.store.Put(key, value)
	if err != nil {
		r.cache.Delete(key)
		return false, protocol.StoreIOError(fmt.Errorf("put %q: %w", key, err))
	}
	return existed, nil
}

// Delete removes key from the store and the cache.
func (r *Router) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	mu := r.cache.Lock(key)
	mu.Lock()
	defer mu.Unlock()

	err := r.store.Delete(key)
	r.cache.Delete(key)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.ErrKeyNotFound
	}
	if err != nil {
		return protocol.StoreIOError(fmt.Errorf("delete %q: %w", key, err))
	}
	return nil
}

func checkKey(key string) error {
	if len(key) > protocol.MaxKeySize {
		return protocol.ErrOversizedKey
	}
	return nil
}
