// Package cache implements the in-memory, set-associative cache that sits in
// front of the durable store.
//
// Keys are hashed into a fixed number of sets. Each set is a short list
// guarded by its own mutex, so requests for keys in different sets never
// contend. When a set is full the clock (second-chance) policy picks the
// victim: entries read since the last sweep are spared once.
package cache
