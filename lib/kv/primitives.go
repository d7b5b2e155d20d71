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
	"encoding/json"

	"github.com/gravitational/trace"
)

// SetMapField sets blob[field][name] = value at key, preserving the
// map's other entries verbatim.
func SetMapField(ctx context.Context, b *Batch, key, field, name string, value any) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	m := map[string]json.RawMessage{}
	if _, err := blob.Decode(field, &m); err != nil {
		return trace.Wrap(err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return trace.Wrap(err)
	}
	m[name] = data
	if err := blob.Encode(field, m); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

// AddToMap sets blob[field][element] = true at key. The boolean map is
// the legacy shape used for operator-style flat groups.
func AddToMap(ctx context.Context, b *Batch, key, field, element string) error {
	return trace.Wrap(SetMapField(ctx, b, key, field, element, true))
}

// DelFromMap removes element from the map blob[field] at key. Removing
// an absent element is a no-op.
func DelFromMap(ctx context.Context, b *Batch, key, field, element string) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	m := map[string]json.RawMessage{}
	if _, err := blob.Decode(field, &m); err != nil {
		return trace.Wrap(err)
	}
	if _, ok := m[element]; !ok {
		return nil
	}
	delete(m, element)
	if err := blob.Encode(field, m); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

// SetValue sets blob[property] = value at key. The blob defaults to an
// empty record when the key does not exist.
func SetValue(ctx context.Context, b *Batch, key, property string, value any) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := blob.Encode(property, value); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

// Rename moves the secondary name-index of the entity at key to
// newName and updates the blob's name: the old index key
// /{indexType}/{account}/{oldName} is deleted and the new one is
// written in the same batch. When the primary blob is missing the
// rename is skipped with a warning and the batch remains valid.
func Rename(ctx context.Context, b *Batch, key, newName, indexType, uuid string) error {
	data, err := b.Get(ctx, key)
	if err != nil {
		if trace.IsNotFound(err) {
			log.WarnContext(ctx, "Rename target does not exist, skipping",
				"key", key,
				"new_name", newName,
			)
			return nil
		}
		return trace.Wrap(err)
	}
	blob, err := decodeBlob(key, data)
	if err != nil {
		return trace.Wrap(err)
	}
	account := blob.GetString("account")
	oldName := blob.GetString("name")
	b.Del(Key(indexType, account, oldName))
	b.Set(Key(indexType, account, newName), []byte(uuid))
	if err := blob.Encode("name", newName); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}
