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

// Package kv implements the key/value projection layer: a redis-backed
// store client, a per-entry write batch with a read-through cache, and
// the shared primitives the changelog transforms use to maintain
// denormalized records.
package kv

import (
	"context"
	"strings"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

var log = logutils.NewPackageLogger(mahi.ComponentKey, mahi.ComponentKV)

// Separator joins the components of a key.
const Separator = "/"

// Key builds a store key from parts with a leading separator, e.g.
// Key("uuid", u) -> "/uuid/<u>".
func Key(parts ...string) string {
	return Separator + strings.Join(parts, Separator)
}

// Store reads and writes the projection.
type Store interface {
	// Get returns the value at key or trace.NotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put sets key to value.
	Put(ctx context.Context, key string, value []byte) error
	// SMembers returns the members of the native set at key. A missing
	// key reads as an empty set.
	SMembers(ctx context.Context, key string) ([]string, error)
	// Tx begins an atomic write transaction.
	Tx() Tx
}

// Tx accumulates writes that apply atomically on Commit. Queued writes
// are not visible to store reads until then.
type Tx interface {
	// Set queues a string write.
	Set(key string, value []byte)
	// Del queues a delete.
	Del(key string)
	// SAdd queues a native-set insert.
	SAdd(key, member string)
	// SRem queues a native-set removal.
	SRem(key, member string)
	// Len reports the number of queued commands.
	Len() int
	// Commit applies all queued commands atomically. An empty
	// transaction commits successfully as a no-op.
	Commit(ctx context.Context) error
}
