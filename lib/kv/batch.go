/*
Copyright 2025 TritonDataCenter, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kv

import (
	"context"

	"github.com/gravitational/trace"
)

// Batch collects the mutations for one changelog entry and applies
// them atomically on Commit. Reads go through a batch-local cache so
// they observe writes queued earlier in the same batch: within one
// entry, several transforms may read-modify-write the same record, and
// without the cache the second read would miss the in-flight update
// and clobber it on write.
//
// A Batch is owned by a single entry application and is not safe for
// concurrent use.
type Batch struct {
	store Store
	tx    Tx
	// cache overlays queued writes over the store. A nil value is a
	// tombstone: the key was deleted in this batch or is known to be
	// missing from the store. Native-set keys are never cached.
	cache map[string][]byte
}

// NewBatch begins a batch bound to store.
func NewBatch(store Store) *Batch {
	return &Batch{
		store: store,
		tx:    store.Tx(),
		cache: make(map[string][]byte),
	}
}

// Set queues a write and makes it visible to later reads in the batch.
func (b *Batch) Set(key string, value []byte) {
	b.tx.Set(key, value)
	b.cache[key] = value
}

// Del queues a delete and tombstones the key for later reads.
func (b *Batch) Del(key string) {
	b.tx.Del(key)
	b.cache[key] = nil
}

// SAdd queues a native-set insert.
func (b *Batch) SAdd(key, member string) {
	b.tx.SAdd(key, member)
}

// SRem queues a native-set removal.
func (b *Batch) SRem(key, member string) {
	b.tx.SRem(key, member)
}

// Get returns the key's value as observed by this batch: queued writes
// win over the store, and a queued delete reads as trace.NotFound.
// Store reads populate the cache, misses included.
func (b *Batch) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := b.cache[key]; ok {
		if value == nil {
			return nil, trace.NotFound("key %q is not found", key)
		}
		return value, nil
	}
	value, err := b.store.Get(ctx, key)
	if err != nil {
		if trace.IsNotFound(err) {
			b.cache[key] = nil
		}
		return nil, trace.Wrap(err)
	}
	b.cache[key] = value
	return value, nil
}

// SMembers reads a native set directly from the store. Members queued
// with SAdd/SRem in this batch are not reflected until Commit.
func (b *Batch) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := b.store.SMembers(ctx, key)
	return members, trace.Wrap(err)
}

// Len reports the number of queued commands.
func (b *Batch) Len() int {
	return b.tx.Len()
}

// Commit applies every queued command atomically. A batch with no
// queued commands commits successfully as a no-op.
func (b *Batch) Commit(ctx context.Context) error {
	return trace.Wrap(b.tx.Commit(ctx))
}
