// Package store implements the key/value storage contract this system
// persists everything through (spec §4.3): per-leaf record sharding, a
// deduplicated DAG-trail append log, a contiguity probe, gap enumeration,
// and a payload-slice inverted index, all built on top of a narrow KV
// interface so the backing adapter can be swapped (spec §9 Design Notes:
// "dynamic adapter selection ... becomes a StorageAdapter trait with
// several impls").
package store

import (
	"context"
	"sort"
	"strings"
)

// KVPair is one key/value entry yielded by Iterate.
type KVPair struct {
	Key   string
	Value string
}

// KV is the minimal storage contract every adapter implements. All domain
// helpers in this package (leaf records, the trail log, gap detection, the
// payload-slice index) are built purely in terms of this interface.
type KV interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Persist(ctx context.Context) error

	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Iterate streams every key/value pair whose key begins with prefix.
	// The returned channel is closed when iteration completes, errors, or
	// ctx is cancelled; callers should drain it or cancel ctx to avoid
	// leaking the producing goroutine.
	Iterate(ctx context.Context, prefix string) (<-chan KVPair, error)
}

// collect drains an Iterate channel into a sorted-by-key slice, the shape
// most domain helpers in this package want to work with.
func collect(ctx context.Context, kv KV, prefix string) ([]KVPair, error) {
	ch, err := kv.Iterate(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []KVPair
	for pair := range ch {
		out = append(out, pair)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func hasPrefix(key, prefix string) bool { return strings.HasPrefix(key, prefix) }
